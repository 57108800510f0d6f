package dispatch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/filter"
)

// anyMethod registers an endpoint for every method.
const anyMethod = "*"

var routableMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

// Endpoint is a routed action together with its controller and action
// scoped filters.
type Endpoint struct {
	Name    string
	Action  ports.Action
	Filters []filter.Descriptor
}

// Routes maps method and chi pattern to endpoints. chi only performs the
// matching; the mux is never served.
type Routes struct {
	mux       *chi.Mux
	endpoints map[string]*Endpoint
}

// NewRoutes returns an empty route table.
func NewRoutes() *Routes {
	return &Routes{
		mux:       chi.NewRouter(),
		endpoints: make(map[string]*Endpoint),
	}
}

// Handle registers ep for method and pattern. A method of "*" matches
// every method.
func (r *Routes) Handle(method, pattern string, ep *Endpoint) error {
	if ep == nil || ep.Action == nil {
		return &domain.ArgumentError{Name: "ep", Reason: "endpoint must have an action"}
	}
	method = strings.ToUpper(method)
	if ep.Name == "" {
		ep.Name = method + " " + pattern
	}

	if method == anyMethod {
		r.mux.Handle(pattern, noopHandler)
	} else {
		if !isRoutable(method) {
			return fmt.Errorf("dispatch: unsupported method %q", method)
		}
		r.mux.Method(method, pattern, noopHandler)
	}
	r.endpoints[routeKey(method, pattern)] = ep
	return nil
}

// HandleFunc registers an action function with optional filters.
func (r *Routes) HandleFunc(method, pattern string, action ports.ActionFunc, filters ...filter.Descriptor) error {
	return r.Handle(method, pattern, &Endpoint{Action: action, Filters: filters})
}

// Resolve matches req against the table. It returns the endpoint and a
// fresh chi route context holding the URL parameters. Unmatched requests
// yield a 404 or 405 *domain.APIError.
func (r *Routes) Resolve(req *http.Request) (*Endpoint, *chi.Context, error) {
	path := req.URL.RawPath
	if path == "" {
		path = req.URL.Path
	}
	if path == "" {
		path = "/"
	}

	rctx := chi.NewRouteContext()
	if pattern := r.mux.Find(rctx, req.Method, path); pattern != "" {
		ep := r.endpoints[routeKey(req.Method, pattern)]
		if ep == nil {
			ep = r.endpoints[routeKey(anyMethod, pattern)]
		}
		if ep != nil {
			if len(rctx.RoutePatterns) == 0 {
				rctx.RoutePatterns = append(rctx.RoutePatterns, pattern)
			}
			return ep, rctx, nil
		}
	}

	var allowed []string
	for _, m := range routableMethods {
		if m != req.Method && r.mux.Match(chi.NewRouteContext(), m, path) {
			allowed = append(allowed, m)
		}
	}
	if len(allowed) > 0 {
		return nil, nil, &MethodNotAllowedError{
			APIError: domain.NewAPIError(domain.ErrorTypeMethodNotAllowed,
				fmt.Sprintf("The requested resource does not support http method '%s'.", req.Method)),
			Allowed: allowed,
		}
	}
	return nil, nil, domain.ErrNotFound(fmt.Sprintf("No route matches the request URI '%s'.", req.URL.Path))
}

// MethodNotAllowedError is returned when the path matches but the method
// does not.
type MethodNotAllowedError struct {
	*domain.APIError
	Allowed []string
}

// Response renders the error with an Allow header.
func (e *MethodNotAllowedError) Response(req *http.Request) *http.Response {
	resp := e.APIError.Response(req)
	resp.Header.Set("Allow", strings.Join(e.Allowed, ", "))
	return resp
}

// Unwrap exposes the embedded *domain.APIError to errors.As.
func (e *MethodNotAllowedError) Unwrap() error { return e.APIError }

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

func isRoutable(method string) bool {
	for _, m := range routableMethods {
		if m == method {
			return true
		}
	}
	return false
}

var noopHandler = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
