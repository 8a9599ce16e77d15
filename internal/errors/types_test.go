package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleErrorError(t *testing.T) {
	cause := fs.ErrNotExist
	err := ErrModuleNotFound("/plugins/a.so", cause).WithModule("example.com/a@v1.0.0")

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_MODULE_NOT_FOUND]")
	assert.Contains(t, msg, "module:example.com/a@v1.0.0")
	assert.Contains(t, msg, "/plugins/a.so")
	assert.Contains(t, msg, "module file not found")
	assert.Contains(t, msg, cause.Error())
}

func TestAssembleErrorUnwrapAndIs(t *testing.T) {
	cause := fs.ErrPermission
	err := ErrModuleUnreadable("/plugins/a.so", cause)

	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.True(t, errors.Is(err, &AssembleError{Type: ErrorTypeIO, Code: ErrCodeModuleUnreadable}))
	assert.False(t, errors.Is(err, &AssembleError{Type: ErrorTypeLoad, Code: ErrCodeModuleUnreadable}))

	wrapped := fmt.Errorf("scan: %w", err)
	var ae *AssembleError
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, "/plugins/a.so", ae.FilePath)
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		tolerated    bool
		recoverable  bool
		construction bool
		errType      ErrorType
	}{
		{"not found", ErrModuleNotFound("a", nil), true, true, false, ErrorTypeLoad},
		{"in use", ErrModuleInUse("a", nil), true, true, false, ErrorTypeLoad},
		{"malformed", ErrModuleMalformed("a", nil), true, true, false, ErrorTypeLoad},
		{"load failed", ErrModuleLoadFailed("a", nil), true, true, false, ErrorTypeLoad},
		{"missing identity", ErrMissingIdentity("a"), true, true, false, ErrorTypeIdentity},
		{"unreadable", ErrModuleUnreadable("a", nil), false, false, false, ErrorTypeIO},
		{"construction", ErrConstruction(ErrCodeNoConstructor, "m", "*p.T", nil), false, false, true, ErrorTypeConstruction},
		{"foreign", errors.New("boom"), false, false, false, ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tolerated, IsTolerated(tt.err))
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			assert.Equal(t, tt.construction, IsConstructionError(tt.err))
			assert.Equal(t, tt.errType, TypeOf(tt.err))
		})
	}
}

func TestWithContext(t *testing.T) {
	err := ErrConstruction(ErrCodeConstructorFail, "mod", "*pkg.Proc", errors.New("bad"))

	assert.Equal(t, "*pkg.Proc", err.Context["processor"])
	assert.Equal(t, "mod", err.Module)

	err.WithContext("attempt", 1)
	assert.Equal(t, 1, err.Context["attempt"])
}

type recordingLogger struct {
	warns  []string
	errors []string
	codes  []interface{}
	causes []error
}

func (l *recordingLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.errors = append(l.errors, msg)
	l.record(err, fields)
}

func (l *recordingLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.warns = append(l.warns, msg)
	l.record(err, fields)
}

func (l *recordingLogger) record(err error, fields []interface{}) {
	l.causes = append(l.causes, err)
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i] == "code" {
			l.codes = append(l.codes, fields[i+1])
		}
	}
}

func TestErrorHandlerHandle(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	plain := errors.New("plain")

	handler.Handle(ctx, nil)
	handler.Handle(ctx, ErrModuleMalformed("x.so", nil))
	handler.Handle(ctx, ErrMissingIdentity("y.so"))
	handler.Handle(ctx, ErrConstruction(ErrCodeNoConstructor, "m", "*p.T", nil))
	handler.Handle(ctx, ErrModuleUnreadable("x.so", nil))
	handler.Handle(ctx, plain)

	assert.Equal(t, []string{"Module file skipped", "Module skipped"}, logger.warns)
	assert.Equal(t, []string{
		"Processor construction failed",
		"Error occurred",
		"Unhandled error occurred",
	}, logger.errors)
	assert.Equal(t, []interface{}{
		ErrCodeModuleMalformed,
		ErrCodeMissingIdentity,
		ErrCodeNoConstructor,
		ErrCodeModuleUnreadable,
		ErrCodeInternalError,
	}, logger.codes)

	require.Len(t, logger.causes, 5)
	assert.ErrorIs(t, logger.causes[4], plain)
	assert.Equal(t, ErrorTypeInternal, TypeOf(logger.causes[4]))
}

func TestErrorHandlerNilLogger(t *testing.T) {
	handler := NewErrorHandler(nil)
	assert.NotPanics(t, func() {
		handler.Handle(context.Background(), errors.New("ignored"))
	})
}
