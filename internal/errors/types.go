// Package errors provides the structured error type used across assemble.
//
// Every failure the engine can report is an *AssembleError carrying a type
// (the failure kind), a stable code, and the module or processor type the
// failure concerns. Load and identity failures are tolerated by the engine
// and never terminate a run; every other type is fatal.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeLoad         ErrorType = "load"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeIdentity     ErrorType = "identity"
	ErrorTypeConstruction ErrorType = "construction"
	ErrorTypeScan         ErrorType = "scan"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeInternal     ErrorType = "internal"
)

// AssembleError is a structured error type with context.
type AssembleError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Module      string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *AssembleError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AssembleError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *AssembleError) Is(target error) bool {
	var t *AssembleError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AssembleError) WithContext(key string, value interface{}) *AssembleError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath adds the file the error concerns.
func (e *AssembleError) WithPath(path string) *AssembleError {
	e.FilePath = path

	return e
}

// WithModule adds module context.
func (e *AssembleError) WithModule(module string) *AssembleError {
	e.Module = module

	return e
}

// Error creation functions

// NewLoadError creates a tolerated module load error.
func NewLoadError(code, message string, cause error) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeLoad,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIdentityError creates an error for a module without a usable identity.
func NewIdentityError(code, message string) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeIdentity,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConstructionError creates a processor construction error.
func NewConstructionError(code, message string, cause error) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeConstruction,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewScanError creates a capability scanning error.
func NewScanError(code, message string, cause error) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeScan,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AssembleError {
	return &AssembleError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ae *AssembleError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}

	return false
}

// IsTolerated reports whether the engine drops the module and keeps going.
func IsTolerated(err error) bool {
	var ae *AssembleError
	if errors.As(err, &ae) {
		return ae.Type == ErrorTypeLoad || ae.Type == ErrorTypeIdentity
	}

	return false
}

// IsConstructionError checks if an error is a processor construction failure.
func IsConstructionError(err error) bool {
	return hasType(err, ErrorTypeConstruction)
}

// IsLoadError checks if an error is a tolerated load failure.
func IsLoadError(err error) bool {
	return hasType(err, ErrorTypeLoad)
}

// TypeOf returns the error type, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var ae *AssembleError
	if errors.As(err, &ae) {
		return ae.Type
	}

	return ErrorTypeInternal
}

func hasType(err error, t ErrorType) bool {
	var ae *AssembleError
	if errors.As(err, &ae) {
		return ae.Type == t
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error with appropriate logging. Errors that are not
// an *AssembleError are logged as internal errors.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	msg := "Error occurred"
	var ae *AssembleError
	if !errors.As(err, &ae) {
		ae = NewInternalError(ErrCodeInternalError, "unclassified failure", err)
		msg = "Unhandled error occurred"
	}
	fields := []interface{}{"type", TypeOf(ae), "code", ae.Code, "module", ae.Module}

	switch {
	case IsLoadError(ae):
		h.logger.Warn(ctx, ae, "Module file skipped", append(fields, "file", ae.FilePath)...)
	case IsRecoverable(ae):
		h.logger.Warn(ctx, ae, "Module skipped", append(fields, "file", ae.FilePath)...)
	case IsConstructionError(ae):
		h.logger.Error(ctx, ae, "Processor construction failed", append(fields, "processor", ae.Context["processor"])...)
	default:
		h.logger.Error(ctx, ae, msg, append(fields, "file", ae.FilePath)...)
	}
}

// Common error codes.
const (
	ErrCodeModuleNotFound   = "ERR_MODULE_NOT_FOUND"
	ErrCodeModuleInUse      = "ERR_MODULE_IN_USE"
	ErrCodeModuleMalformed  = "ERR_MODULE_MALFORMED"
	ErrCodeModuleLoadFailed = "ERR_MODULE_LOAD_FAILED"
	ErrCodeModuleUnreadable = "ERR_MODULE_UNREADABLE"
	ErrCodeMissingIdentity  = "ERR_MISSING_IDENTITY"
	ErrCodeExportsFailed    = "ERR_EXPORTS_FAILED"
	ErrCodeNoConstructor    = "ERR_NO_CONSTRUCTOR"
	ErrCodeUnresolvable     = "ERR_UNRESOLVABLE_DEPENDENCY"
	ErrCodeConstructorFail  = "ERR_CONSTRUCTOR_FAILED"
	ErrCodeNilProcessor     = "ERR_NIL_PROCESSOR"
	ErrCodeScanRoot         = "ERR_SCAN_ROOT"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrModuleNotFound creates the error for a module file that vanished.
func ErrModuleNotFound(path string, cause error) *AssembleError {
	return NewLoadError(ErrCodeModuleNotFound, "module file not found", cause).WithPath(path)
}

// ErrModuleInUse creates the error for a module file locked by another process.
func ErrModuleInUse(path string, cause error) *AssembleError {
	return NewLoadError(ErrCodeModuleInUse, "module file is in use", cause).WithPath(path)
}

// ErrModuleMalformed creates the error for a file that is not a module binary.
func ErrModuleMalformed(path string, cause error) *AssembleError {
	return NewLoadError(ErrCodeModuleMalformed, "malformed module binary", cause).WithPath(path)
}

// ErrModuleLoadFailed creates the error for a binary the runtime refused to load.
func ErrModuleLoadFailed(path string, cause error) *AssembleError {
	return NewLoadError(ErrCodeModuleLoadFailed, "module could not be loaded", cause).WithPath(path)
}

// ErrModuleUnreadable creates the fatal error for an unexpected load failure.
func ErrModuleUnreadable(path string, cause error) *AssembleError {
	return NewIOError(ErrCodeModuleUnreadable, "module file unreadable", cause).WithPath(path)
}

// ErrMissingIdentity creates the error for a module without an identifier.
func ErrMissingIdentity(path string) *AssembleError {
	return NewIdentityError(ErrCodeMissingIdentity, "module has no identity").WithPath(path)
}

// ErrConstruction creates a construction error for a processor type.
func ErrConstruction(code, module, processor string, cause error) *AssembleError {
	return NewConstructionError(code, "cannot construct processor "+processor, cause).
		WithModule(module).
		WithContext("processor", processor)
}
