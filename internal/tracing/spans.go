package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRunID         = "assemble.run.id"
	AttrModuleID      = "assemble.module.id"
	AttrModulePath    = "assemble.module.path"
	AttrProcessorType = "assemble.processor.type"
	AttrScanRoot      = "assemble.scan.root"
	AttrRecursive     = "assemble.scan.recursive"
	AttrModuleCount   = "assemble.modules"
	AttrProcessorCnt  = "assemble.processors"
	AttrErrorCode     = "error.code"
)

// Span names.
const (
	SpanRun        = "assemble.run"
	SpanResident   = "assemble.scan.resident"
	SpanFilesystem = "assemble.scan.filesystem"
	SpanDiscover   = "assemble.discover"
	SpanDispatch   = "assemble.dispatch"
)

type runIDKey struct{}

// ContextWithRunID returns ctx carrying the run identifier.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier, or "" if none is set.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error, code string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code != "" {
			span.SetAttributes(attribute.String(AttrErrorCode, code))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
