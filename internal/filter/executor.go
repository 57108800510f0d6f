package filter

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// Execute runs links around terminal and returns the settled outcome.
//
// Argument errors are returned before any filter runs. Every other failure
// is the error result of the chain; Execute neither logs nor swallows it.
func Execute(ctx context.Context, ec *domain.ExecutionContext, links []ports.Link, terminal ports.Continuation) (*http.Response, error) {
	if ec == nil {
		return nil, &domain.ArgumentError{Name: "ec"}
	}
	if terminal == nil {
		return nil, &domain.ArgumentError{Name: "terminal"}
	}
	for i, l := range links {
		if l == nil {
			return nil, &domain.ArgumentError{Name: "links", Reason: "element " + strconv.Itoa(i) + " is nil"}
		}
	}

	return Chain(ec, links, terminal)(ctx)
}

// Chain composes links around terminal without running anything.
func Chain(ec *domain.ExecutionContext, links []ports.Link, terminal ports.Continuation) ports.Continuation {
	next := once(terminal)
	for i := len(links) - 1; i >= 0; i-- {
		link, inner := links[i], next
		next = once(func(ctx context.Context) (*http.Response, error) {
			resp, err := link.Invoke(ctx, ec, inner)
			if err == nil && resp == nil {
				return nil, ErrNoOutcome
			}
			return resp, err
		})
	}
	return next
}

// ErrNoOutcome is returned when a filter settles with neither a response nor
// an error.
var ErrNoOutcome = &domain.InvalidStateError{Message: "a filter must produce either a response or an exception"}

// ErrContinuationReused is returned when a continuation is invoked twice.
var ErrContinuationReused = &domain.InvalidStateError{Message: "continuation already invoked"}

func once(c ports.Continuation) ports.Continuation {
	var used atomic.Bool
	return func(ctx context.Context) (*http.Response, error) {
		if !used.CompareAndSwap(false, true) {
			return nil, ErrContinuationReused
		}
		return c(ctx)
	}
}

// AuthorizationLinks adapts authorization filters to links.
func AuthorizationLinks(filters []ports.AuthorizationFilter) []ports.Link {
	links := make([]ports.Link, len(filters))
	for i, f := range filters {
		links[i] = ports.LinkFunc(f.ExecuteAuthorization)
	}
	return links
}

// ActionLinks adapts action filters to links.
func ActionLinks(filters []ports.ActionFilter) []ports.Link {
	links := make([]ports.Link, len(filters))
	for i, f := range filters {
		links[i] = ports.LinkFunc(f.ExecuteAction)
	}
	return links
}

// ExceptionLinks adapts exception filters to links. Because each link wraps
// the next, the last filter is the first to see a fault.
func ExceptionLinks(filters []ports.ExceptionFilter) []ports.Link {
	links := make([]ports.Link, len(filters))
	for i, f := range filters {
		links[i] = exceptionLink{filter: f}
	}
	return links
}

type exceptionLink struct {
	filter ports.ExceptionFilter
}

func (l exceptionLink) Invoke(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
	resp, err := next(ctx)
	if err == nil || domain.IsCanceled(err) {
		return resp, err
	}

	fc := &domain.FaultContext{ActionContext: ec, Err: err}
	if ferr := l.filter.ExecuteException(ctx, fc); ferr != nil {
		ec.Err = ferr
		return nil, ferr
	}

	if fc.Response != nil {
		ec.Response, ec.Err = fc.Response, nil
		return fc.Response, nil
	}
	if fc.Err == nil {
		// Clearing the fault without supplying a response does not recover.
		return nil, err
	}
	ec.Err = fc.Err
	return nil, fc.Err
}
