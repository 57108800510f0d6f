package ports

import (
	"context"
	"net/http"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

// Dispatcher executes one request and produces its response. Batch handlers
// re-enter the same Dispatcher for each sub-request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// Action is a resolved target capable of producing a response.
type Action interface {
	Execute(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error)

// Execute calls f.
func (f ActionFunc) Execute(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
	return f(ctx, ec)
}

// ExceptionLogger records faults. Loggers never change the outcome.
type ExceptionLogger interface {
	Log(ctx context.Context, ec *domain.ExceptionContext) error
}

// ExceptionLoggerFunc adapts a function to ExceptionLogger.
type ExceptionLoggerFunc func(ctx context.Context, ec *domain.ExceptionContext) error

// Log calls f.
func (f ExceptionLoggerFunc) Log(ctx context.Context, ec *domain.ExceptionContext) error {
	return f(ctx, ec)
}

// ExceptionHandler gets a chance to turn a fault into a response by setting
// hc.Result.
type ExceptionHandler interface {
	Handle(ctx context.Context, hc *domain.ExceptionHandlerContext) error
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(ctx context.Context, hc *domain.ExceptionHandlerContext) error

// Handle calls f.
func (f ExceptionHandlerFunc) Handle(ctx context.Context, hc *domain.ExceptionHandlerContext) error {
	return f(ctx, hc)
}

// FaultStore persists logged faults.
type FaultStore interface {
	SaveFault(ctx context.Context, rec *domain.FaultRecord) error
	ListFaults(ctx context.Context, limit int) ([]*domain.FaultRecord, error)
	Close() error
}
