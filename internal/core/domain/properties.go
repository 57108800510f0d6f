package domain

import (
	"context"
	"net/http"
	"sync"
)

// Well-known correlation property keys.
const (
	// PropertyRequestID holds the request ID assigned at the edge.
	PropertyRequestID = "request_id"

	// PropertyRouteContext holds the routing state of the request. It is
	// never copied to batch sub-requests, which are routed afresh.
	PropertyRouteContext = "route_context"

	// PropertyDisposables holds the request's *Registry. Each request owns
	// its own registry.
	PropertyDisposables = "disposables"

	// PropertyBatchSubRequest is true on requests extracted from a batch envelope.
	PropertyBatchSubRequest = "is_batch_sub_request"
)

// Properties is the correlation map attached to one request.
// It is safe for concurrent use.
type Properties struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewProperties returns an empty property map.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key.
func (p *Properties) Set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// Delete removes key.
func (p *Properties) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
}

// Keys returns a snapshot of the stored keys in no particular order.
func (p *Properties) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	return keys
}

// CopyExcept returns a new map holding every entry except the excluded keys.
func (p *Properties) CopyExcept(excluded ...string) *Properties {
	skip := make(map[string]struct{}, len(excluded))
	for _, k := range excluded {
		skip[k] = struct{}{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := NewProperties()
	for k, v := range p.values {
		if _, ok := skip[k]; ok {
			continue
		}
		out.values[k] = v
	}
	return out
}

type propertiesKey struct{}

// WithProperties attaches props to ctx.
func WithProperties(ctx context.Context, props *Properties) context.Context {
	return context.WithValue(ctx, propertiesKey{}, props)
}

// PropertiesFrom returns the properties attached to ctx, or nil.
func PropertiesFrom(ctx context.Context) *Properties {
	props, _ := ctx.Value(propertiesKey{}).(*Properties)
	return props
}

// EnsureProperties returns req unchanged when it already carries a property
// map with a disposal registry, and otherwise a shallow copy that does.
func EnsureProperties(req *http.Request) (*http.Request, *Properties) {
	props := PropertiesFrom(req.Context())
	if props == nil {
		props = NewProperties()
		req = req.WithContext(WithProperties(req.Context(), props))
	}
	if _, ok := props.Get(PropertyDisposables); !ok {
		props.Set(PropertyDisposables, NewRegistry())
	}
	return req, props
}

// RequestID returns the request ID property of req, or "".
func RequestID(req *http.Request) string {
	props := PropertiesFrom(req.Context())
	if props == nil {
		return ""
	}
	id, _ := props.Get(PropertyRequestID)
	s, _ := id.(string)
	return s
}

// IsBatchSubRequest reports whether req was extracted from a batch envelope.
func IsBatchSubRequest(req *http.Request) bool {
	props := PropertiesFrom(req.Context())
	if props == nil {
		return false
	}
	v, _ := props.Get(PropertyBatchSubRequest)
	b, _ := v.(bool)
	return b
}
