package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/exception"
	"github.com/tjfontaine/actiondispatch/internal/filter"
	"github.com/tjfontaine/actiondispatch/internal/server"
)

// statusClientClosedRequest is logged for requests canceled by the client.
const statusClientClosedRequest = 499

// errNoActionResponse is returned when an action settles with neither a
// response nor an error.
var errNoActionResponse = &domain.InvalidStateError{Message: "action returned neither a response nor an error"}

// Server executes requests through the filter pipeline of their endpoint.
// It implements ports.Dispatcher and http.Handler.
type Server struct {
	routes     *Routes
	filters    []filter.Descriptor
	exceptions *exception.Service
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithGlobalFilters registers filters at global scope.
func WithGlobalFilters(filters ...ports.Filter) Option {
	return func(s *Server) {
		for _, f := range filters {
			s.filters = append(s.filters, filter.Descriptor{Filter: f, Scope: domain.ScopeGlobal})
		}
	}
}

// WithDescriptors registers pre-built filter descriptors, typically global
// overrides.
func WithDescriptors(descs ...filter.Descriptor) Option {
	return func(s *Server) {
		s.filters = append(s.filters, descs...)
	}
}

// WithExceptionService sets the service used for faults that escape the
// pipeline.
func WithExceptionService(svc *exception.Service) Option {
	return func(s *Server) {
		if svc != nil {
			s.exceptions = svc
		}
	}
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Server over routes.
func New(routes *Routes, opts ...Option) (*Server, error) {
	if routes == nil {
		return nil, &domain.ArgumentError{Name: "routes"}
	}
	s := &Server{
		routes: routes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exceptions == nil {
		s.exceptions = exception.NewService(
			exception.WithLoggers(exception.NewSlogLogger(s.logger, true)),
			exception.WithLogger(s.logger),
		)
	}
	return s, nil
}

// Routes returns the route table.
func (s *Server) Routes() *Routes {
	return s.routes
}

// Dispatch implements ports.Dispatcher.
//
// The request is routed, then run through the exception stage, the
// authorization filters and the action filters around the endpoint's
// action. A fault that escapes every filter is logged once and offered to
// the exception handlers; if none resolves it the original fault is
// returned with its stack preserved. Cancellations are returned untouched.
func (s *Server) Dispatch(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, &domain.ArgumentError{Name: "req"}
	}
	req, props := domain.EnsureProperties(req)

	ep, rctx, err := s.routes.Resolve(req)
	if err != nil {
		if resp := errorResponse(req, err); resp != nil {
			return resp, nil
		}
		return nil, err
	}
	props.Set(domain.PropertyRouteContext, rctx)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	ec := domain.NewExecutionContext(req)
	resp, err := s.execute(ctx, ec, ep)
	if err == nil {
		ec.Response, ec.Err = resp, nil
		return resp, nil
	}
	ec.Response, ec.Err = nil, err
	if domain.IsCanceled(err) {
		return nil, err
	}

	xc := &domain.ExceptionContext{
		Err:           err,
		CatchBlock:    domain.CatchBlockDispatcher,
		Request:       req,
		ActionContext: ec,
	}
	if logErr := s.exceptions.Log(ctx, xc); logErr != nil {
		return nil, logErr
	}
	return s.exceptions.Handle(ctx, xc)
}

func (s *Server) execute(ctx context.Context, ec *domain.ExecutionContext, ep *Endpoint) (resp *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, &domain.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	descs := make([]filter.Descriptor, 0, len(s.filters)+len(ep.Filters))
	descs = append(descs, s.filters...)
	descs = append(descs, ep.Filters...)
	authorization, action, exceptions := filter.Resolve(descs).Links()

	terminal := func(ctx context.Context) (*http.Response, error) {
		return invoke(ctx, ec, ep.Action)
	}
	inner := filter.Chain(ec, authorization, filter.Chain(ec, action, terminal))

	// The logging link is innermost so faults are logged before any
	// exception filter can recover them.
	links := append(exceptions, s.logLink())
	return filter.Execute(ctx, ec, links, inner)
}

// logLink logs faults from the inner pipeline and turns client errors into
// responses.
func (s *Server) logLink() ports.Link {
	return ports.LinkFunc(func(ctx context.Context, ec *domain.ExecutionContext, next ports.Continuation) (*http.Response, error) {
		resp, err := next(ctx)
		if err == nil || domain.IsCanceled(err) {
			return resp, err
		}
		if resp := errorResponse(ec.Request, err); resp != nil {
			return resp, nil
		}

		xc := &domain.ExceptionContext{
			Err:           err,
			CatchBlock:    domain.CatchBlockExceptionFilter,
			Request:       ec.Request,
			ActionContext: ec,
		}
		if logErr := s.exceptions.Log(ctx, xc); logErr != nil {
			return nil, logErr
		}
		ec.Err = xc.Err
		return nil, xc.Err
	})
}

// invoke runs the terminal action, recovering panics into faults.
func invoke(ctx context.Context, ec *domain.ExecutionContext, action ports.Action) (resp *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, &domain.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	resp, err = action.Execute(ctx, ec)
	if err != nil {
		if r := errorResponse(ec.Request, err); r != nil {
			return r, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, errNoActionResponse
	}
	return resp, nil
}

// errorResponse renders client errors. It returns nil for every other error.
func errorResponse(req *http.Request, err error) *http.Response {
	var mna *MethodNotAllowedError
	if errors.As(err, &mna) {
		return mna.Response(req)
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode() < http.StatusInternalServerError {
		return apiErr.Response(req)
	}
	return nil
}

// ServeHTTP implements http.Handler on top of Dispatch. Unresolved faults
// become a generic JSON 500. The request's disposal registry is drained
// once the response has been written.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r, _ = domain.EnsureProperties(r)
	defer func() {
		if err := domain.RegistryFor(r).Close(); err != nil {
			s.logger.Warn("failed to dispose request resources",
				slog.String("request_id", domain.RequestID(r)),
				slog.String("error", err.Error()),
			)
		}
	}()

	resp, err := s.Dispatch(r.Context(), r)
	if err != nil {
		if domain.IsCanceled(err) {
			server.AddLogField(r.Context(), "outcome", "canceled")
			w.WriteHeader(statusClientClosedRequest)
			return
		}
		server.AddError(r.Context(), err)
		xc := &domain.ExceptionContext{Err: err, CatchBlock: domain.CatchBlockHost, Request: r}
		_ = s.exceptions.Log(r.Context(), xc)
		resp = domain.ErrServer("An error has occurred.").Response(r)
	}

	if err := writeResponse(w, resp); err != nil {
		s.logger.Debug("failed to write response",
			slog.String("request_id", domain.RequestID(r)),
			slog.String("error", err.Error()),
		)
	}
}
