package telemetry

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

const instrumentationName = "github.com/tjfontaine/actiondispatch/internal/telemetry"

// TracingFilter is an action filter that wraps the rest of the action chain
// in a span. The span's context is handed to the continuation, so spans
// opened by the action nest under it.
type TracingFilter struct {
	tracer trace.Tracer
}

// NewTracingFilter creates a TracingFilter. A nil provider selects the
// global one.
func NewTracingFilter(tp trace.TracerProvider) *TracingFilter {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingFilter{tracer: tp.Tracer(instrumentationName)}
}

// AllowMultiple implements ports.Filter.
func (f *TracingFilter) AllowMultiple() bool { return false }

// ExecuteAction implements ports.ActionFilter.
func (f *TracingFilter) ExecuteAction(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
	req := ec.Request
	ctx, span := f.tracer.Start(ctx, spanName(ec),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
			attribute.String("dispatch.request_id", domain.RequestID(req)),
			attribute.Bool("dispatch.batch_sub_request", domain.IsBatchSubRequest(req)),
		),
	)
	defer span.End()

	resp, err := next(ctx)
	switch {
	case err == nil:
		if resp != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if resp.StatusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
			}
		}
	case domain.IsCanceled(err):
		span.AddEvent("canceled")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

// spanName is "dispatch <method> <route pattern>", falling back to the
// request path for unrouted requests.
func spanName(ec *domain.ExecutionContext) string {
	name := ec.Request.URL.Path
	if v, ok := ec.Properties.Get(domain.PropertyRouteContext); ok {
		if rctx, ok := v.(*chi.Context); ok && rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				name = p
			}
		}
	}
	return "dispatch " + ec.Request.Method + " " + name
}
