package exception

import (
	"context"
	"errors"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
)

// ErrorResponseHandler resolves every fault with a generic JSON 500. With it
// registered, faults in batch sub-requests become per-item error responses
// instead of failing the whole envelope.
type ErrorResponseHandler struct {
	// IncludeDetail copies the fault message into the response.
	IncludeDetail bool
}

// Handle implements ports.ExceptionHandler.
func (h ErrorResponseHandler) Handle(ctx context.Context, hc *domain.ExceptionHandlerContext) error {
	if hc.Request == nil {
		return nil
	}

	var apiErr *domain.APIError
	if errors.As(hc.Err, &apiErr) {
		hc.Result = apiErr.Response(hc.Request)
		return nil
	}

	msg := "An error has occurred."
	if h.IncludeDetail {
		msg = hc.Err.Error()
	}
	hc.Result = domain.ErrServer(msg).Response(hc.Request)
	return nil
}
