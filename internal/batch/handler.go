package batch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// Handler serves a batch endpoint: it parses the envelope, dispatches every
// sub-request back through the host dispatcher and composes the replies.
type Handler struct {
	dispatcher     ports.Dispatcher
	parser         *Parser
	composer       *Composer
	maxConcurrency int
	logger         *slog.Logger

	mu    sync.Mutex
	order domain.ExecutionOrder
	used  bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithMediaTypes sets the accepted envelope media types.
func WithMediaTypes(types ...string) Option {
	return func(h *Handler) {
		if len(types) > 0 {
			h.parser.MediaTypes = types
		}
	}
}

// WithMaxParts limits the number of parts per envelope.
func WithMaxParts(n int) Option {
	return func(h *Handler) {
		h.parser.MaxParts = n
	}
}

// WithMaxConcurrency limits in-flight sub-requests in non-sequential mode.
func WithMaxConcurrency(n int) Option {
	return func(h *Handler) {
		h.maxConcurrency = n
	}
}

// WithLogger sets the logger for the handler.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a batch handler dispatching through d. The execution
// order starts as Sequential.
func NewHandler(d ports.Dispatcher, opts ...Option) (*Handler, error) {
	if d == nil {
		return nil, &domain.ArgumentError{Name: "dispatcher"}
	}
	h := &Handler{
		dispatcher: d,
		parser:     NewParser(),
		composer:   &Composer{},
		logger:     slog.Default(),
		order:      domain.Sequential,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// SetExecutionOrder selects the scheduling policy. It fails with an
// *domain.InvalidEnumError for out-of-range values and with ErrOrderLocked
// once the handler has served a request.
func (h *Handler) SetExecutionOrder(order domain.ExecutionOrder) error {
	if err := order.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.used {
		return ErrOrderLocked
	}
	h.order = order
	return nil
}

// ExecutionOrder returns the configured scheduling policy.
func (h *Handler) ExecutionOrder() domain.ExecutionOrder {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.order
}

func (h *Handler) lockOrder() domain.ExecutionOrder {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.used = true
	return h.order
}

// Execute implements ports.Action.
func (h *Handler) Execute(ctx context.Context, ec *domain.ExecutionContext) (*http.Response, error) {
	if ec == nil {
		return nil, &domain.ArgumentError{Name: "ec"}
	}
	return h.Process(ctx, ec.Request)
}

// Process runs one batch envelope.
//
// Validation failures are returned as *domain.APIError. Each sub-request's
// disposal registry is registered on the envelope's registry, so whoever
// drains the envelope releases sub-request resources too.
func (h *Handler) Process(ctx context.Context, req *http.Request) (*http.Response, error) {
	order := h.lockOrder()

	subs, err := h.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	if envelope := domain.RegistryFor(req); envelope != nil {
		for _, sub := range subs {
			if reg := domain.RegistryFor(sub); reg != nil {
				envelope.Register(reg)
			}
		}
	}

	h.logger.DebugContext(ctx, "batch parsed",
		slog.String("request_id", domain.RequestID(req)),
		slog.Int("parts", len(subs)),
		slog.String("order", order.String()),
	)

	exec := &Executor{
		Dispatcher:     h.dispatcher,
		Order:          order,
		MaxConcurrency: h.maxConcurrency,
	}
	responses, err := exec.Execute(ctx, subs)
	if err != nil {
		return nil, err
	}
	return h.composer.Compose(req, responses)
}
