// Package ports defines the core interfaces of the dispatch pipeline.
// This file contains the filter and continuation contracts.
package ports

import (
	"context"
	"net/http"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

// Continuation runs the remainder of a filter chain: the next filter or the
// terminal action. A filter invokes it at most once.
type Continuation func(ctx context.Context) (*http.Response, error)

// Filter is the capability shared by every filter kind.
type Filter interface {
	// AllowMultiple reports whether several instances of the same filter
	// type may coexist in one resolved pipeline.
	AllowMultiple() bool
}

// AuthorizationFilter runs before any action filter. It short-circuits by
// returning a response without invoking next.
type AuthorizationFilter interface {
	Filter
	ExecuteAuthorization(ctx context.Context, ec *domain.ExecutionContext, next Continuation) (*http.Response, error)
}

// ActionFilter wraps the terminal action.
type ActionFilter interface {
	Filter
	ExecuteAction(ctx context.Context, ec *domain.ExecutionContext, next Continuation) (*http.Response, error)
}

// ExceptionFilter is offered faults produced by the inner pipeline. It
// recovers by setting fc.Response; a returned error replaces the fault.
// Exception filters never see cancellations.
type ExceptionFilter interface {
	Filter
	ExecuteException(ctx context.Context, fc *domain.FaultContext) error
}

// Link is one element of a continuation chain. The filter package adapts
// every filter kind to a Link.
type Link interface {
	Invoke(ctx context.Context, ec *domain.ExecutionContext, next Continuation) (*http.Response, error)
}

// LinkFunc adapts a function to Link.
type LinkFunc func(ctx context.Context, ec *domain.ExecutionContext, next Continuation) (*http.Response, error)

// Invoke calls f.
func (f LinkFunc) Invoke(ctx context.Context, ec *domain.ExecutionContext, next Continuation) (*http.Response, error) {
	return f(ctx, ec, next)
}
