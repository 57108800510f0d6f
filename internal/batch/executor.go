package batch

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// errNoResponse is returned when the dispatcher yields neither a response
// nor an error for a sub-request.
var errNoResponse = &domain.InvalidStateError{Message: "dispatcher returned no response for a batch sub-request"}

// Executor dispatches sub-requests through the host dispatcher.
type Executor struct {
	Dispatcher ports.Dispatcher
	Order      domain.ExecutionOrder
	// MaxConcurrency caps in-flight sub-requests in non-sequential mode.
	// Zero means one goroutine per sub-request.
	MaxConcurrency int
}

// Execute dispatches reqs and returns their responses in input order,
// whatever the completion order.
//
// On a fault or cancellation no partial result is returned. Every response
// already obtained is closed along with its sub-request's disposal registry.
// In non-sequential mode the fault with the lowest index wins.
func (e *Executor) Execute(ctx context.Context, reqs []*http.Request) ([]*http.Response, error) {
	if e.Dispatcher == nil {
		return nil, &domain.ArgumentError{Name: "dispatcher"}
	}
	if err := e.Order.Validate(); err != nil {
		return nil, err
	}
	if e.Order == domain.NonSequential {
		return e.executeConcurrent(ctx, reqs)
	}
	return e.executeSequential(ctx, reqs)
}

func (e *Executor) executeSequential(ctx context.Context, reqs []*http.Request) ([]*http.Response, error) {
	responses := make([]*http.Response, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			discard(reqs, responses)
			return nil, err
		}
		resp, err := e.dispatch(ctx, req)
		if err != nil {
			discard(reqs, responses)
			return nil, err
		}
		responses[i] = resp
	}
	return responses, nil
}

func (e *Executor) executeConcurrent(ctx context.Context, reqs []*http.Request) ([]*http.Response, error) {
	responses := make([]*http.Response, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	if e.MaxConcurrency > 0 {
		g.SetLimit(e.MaxConcurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			responses[i], errs[i] = e.dispatch(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	if err := firstError(errs); err != nil {
		discard(reqs, responses)
		return nil, err
	}
	return responses, nil
}

func (e *Executor) dispatch(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := e.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	if resp == nil {
		return nil, errNoResponse
	}
	return resp, nil
}

// firstError returns the lowest-indexed fault, falling back to the first
// cancellation.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !domain.IsCanceled(err) {
			return err
		}
		if canceled == nil {
			canceled = err
		}
	}
	return canceled
}

// discard closes every obtained response and releases the resources of the
// sub-request that produced it.
func discard(reqs []*http.Request, responses []*http.Response) {
	for i, resp := range responses {
		if resp == nil {
			continue
		}
		if resp.Body != nil {
			resp.Body.Close()
		}
		if reg := domain.RegistryFor(reqs[i]); reg != nil {
			_ = reg.Close()
		}
	}
}
