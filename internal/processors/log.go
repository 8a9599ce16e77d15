package processors

import (
	"context"

	"github.com/conneroisu/assemble/internal/logging"
	"github.com/conneroisu/assemble/internal/module"
	"github.com/conneroisu/assemble/internal/tracing"
)

// Log logs every module it receives at info level.
type Log struct {
	logger logging.Logger
}

// NewLog creates a Log processor. The container resolves logger.
func NewLog(logger logging.Logger) *Log {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Log{logger: logger.WithComponent("processor.log")}
}

// Process implements assembler.Processor.
func (l *Log) Process(ctx context.Context, m module.Module) {
	fields := []interface{}{"module", m.ID}
	if m.Path != "" {
		fields = append(fields, "path", m.Path)
	}
	if runID := tracing.RunIDFromContext(ctx); runID != "" {
		fields = append(fields, "run_id", runID)
	}
	l.logger.Info(ctx, "Module received", fields...)
}
