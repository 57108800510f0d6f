package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/exception"
)

// SpanLogger is an exception logger that records faults on the span active
// in the logging context. Without a recording span it does nothing.
type SpanLogger struct{}

// Log implements ports.ExceptionLogger.
func (SpanLogger) Log(ctx context.Context, ec *domain.ExceptionContext) error {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("exception.catch_block", ec.CatchBlock.Name),
	}
	if stack := exception.StackOf(ec.Err); stack != "" {
		attrs = append(attrs, attribute.String("exception.stacktrace", stack))
	}
	span.RecordError(ec.Err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, ec.Err.Error())
	return nil
}
