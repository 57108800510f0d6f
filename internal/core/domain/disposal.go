package domain

import (
	"errors"
	"io"
	"net/http"
	"sync"
)

// Registry is the set of resources that must be closed once the request that
// allocated them has finished. Components append to it while servicing a
// request; the outermost owner drains it.
type Registry struct {
	mu        sync.Mutex
	resources []io.Closer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends c. Nil values are ignored.
func (r *Registry) Register(c io.Closer) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.resources = append(r.resources, c)
	r.mu.Unlock()
}

// Resources returns a snapshot of the registered resources in registration order.
func (r *Registry) Resources() []io.Closer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]io.Closer, len(r.resources))
	copy(out, r.resources)
	return out
}

// Len returns the number of resources still pending disposal.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resources)
}

// Close drains the registry and closes every resource, newest first.
// A drained registry is empty, so closing twice is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	resources := r.resources
	r.resources = nil
	r.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegistryFor returns the disposal registry of req, or nil when the request
// has no property map.
func RegistryFor(req *http.Request) *Registry {
	props := PropertiesFrom(req.Context())
	if props == nil {
		return nil
	}
	v, _ := props.Get(PropertyDisposables)
	reg, _ := v.(*Registry)
	return reg
}

// RegisterForDisposal appends c to the registry of req.
func RegisterForDisposal(req *http.Request, c io.Closer) error {
	reg := RegistryFor(req)
	if reg == nil {
		return &InvalidStateError{Message: "request has no disposal registry"}
	}
	reg.Register(c)
	return nil
}

// ResourcesForDisposal returns every resource registered on req.
func ResourcesForDisposal(req *http.Request) []io.Closer {
	reg := RegistryFor(req)
	if reg == nil {
		return nil
	}
	return reg.Resources()
}

// CloserFunc adapts a function to io.Closer.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error { return f() }
