package exception

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// LoggerFailurePolicy decides what a failing exception logger does to the
// loggers registered after it and to the caller of Log.
type LoggerFailurePolicy int

const (
	// IsolateLoggerFailures runs every logger regardless of failures and
	// reports failures through the service's slog logger only.
	IsolateLoggerFailures LoggerFailurePolicy = iota
	// PropagateLoggerFailures still runs every logger, then joins the
	// failures onto the fault so they travel with it. The original fault
	// stays in the unwrap chain and keeps its stack.
	PropagateLoggerFailures
)

// Service logs faults to every registered logger and offers them to every
// registered handler, falling back to a last-chance rethrow.
type Service struct {
	loggers  []ports.ExceptionLogger
	handlers []ports.ExceptionHandler
	policy   LoggerFailurePolicy
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLoggers appends exception loggers in registration order.
func WithLoggers(loggers ...ports.ExceptionLogger) Option {
	return func(s *Service) {
		s.loggers = append(s.loggers, loggers...)
	}
}

// WithHandlers appends exception handlers in registration order.
func WithHandlers(handlers ...ports.ExceptionHandler) Option {
	return func(s *Service) {
		s.handlers = append(s.handlers, handlers...)
	}
}

// WithLoggerFailurePolicy sets the logger failure policy.
func WithLoggerFailurePolicy(p LoggerFailurePolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the logger used to report logger failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service. Collaborators are passed explicitly; the
// service never consults global registries.
func NewService(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log hands the fault in ec to every logger and waits for all of them.
//
// Loggers start in registration order and run concurrently. Cancellations
// are never logged, and a fault is logged at most once no matter how many
// catch blocks it crosses. ec.Err is replaced by its captured form. Only
// invalid arguments are returned as errors; logger failures are handled by
// the service's LoggerFailurePolicy.
func (s *Service) Log(ctx context.Context, ec *domain.ExceptionContext) error {
	if ec == nil {
		return &domain.ArgumentError{Name: "ec"}
	}
	if ec.Err == nil {
		return &domain.ArgumentError{Name: "ec.Err"}
	}
	if domain.IsCanceled(ec.Err) {
		return nil
	}

	c := Capture(ec.Err)
	ec.Err = c
	if !c.markLogged() || len(s.loggers) == 0 {
		return nil
	}

	errs := make([]error, len(s.loggers))
	var wg sync.WaitGroup
	for i, l := range s.loggers {
		wg.Add(1)
		go func(i int, l ports.ExceptionLogger) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = &domain.PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			if err := l.Log(ctx, ec); err != nil {
				errs[i] = fmt.Errorf("exception logger %d: %w", i, err)
			}
		}(i, l)
	}
	wg.Wait()

	failed := errors.Join(errs...)
	if failed == nil {
		return nil
	}

	s.logger.Error("exception logger failed",
		slog.String("catch_block", ec.CatchBlock.Name),
		slog.String("error", failed.Error()),
	)
	if s.policy == PropagateLoggerFailures {
		ec.Err = c.join(failed)
	}
	return nil
}

// Handle offers the fault to each handler until one sets a result.
//
// When no handler resolves it, Handle rethrows the original fault: the
// returned error unwraps to it and its stack begins with the original
// capture point. Cancellations are returned unchanged without consulting
// any handler. A handler that fails replaces the fault with its error.
func (s *Service) Handle(ctx context.Context, ec *domain.ExceptionContext) (*http.Response, error) {
	if ec == nil {
		return nil, &domain.ArgumentError{Name: "ec"}
	}
	if ec.Err == nil {
		return nil, &domain.ArgumentError{Name: "ec.Err"}
	}
	if domain.IsCanceled(ec.Err) {
		return nil, ec.Err
	}

	hc := &domain.ExceptionHandlerContext{ExceptionContext: ec}
	for _, h := range s.handlers {
		if err := h.Handle(ctx, hc); err != nil {
			return nil, err
		}
		if hc.Result != nil {
			return hc.Result, nil
		}
	}

	return nil, Rethrow(ec.Err)
}
