package filter

import (
	"reflect"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
)

// Descriptor identifies one configured filter. Descriptors are owned by the
// configuration; the executor only references the filters they carry.
type Descriptor struct {
	Filter ports.Filter
	Scope  domain.FilterScope
	// Overrides lists the kinds whose lower-scoped filters this descriptor
	// suppresses. Zero means no override.
	Overrides domain.FilterKind
}

// Kind returns the kinds implemented by the descriptor's filter.
func (d Descriptor) Kind() domain.FilterKind {
	return KindsOf(d.Filter)
}

// Pipeline is the per-kind result of resolving descriptors.
type Pipeline struct {
	Authorization []ports.AuthorizationFilter
	Action        []ports.ActionFilter
	Exception     []ports.ExceptionFilter
}

// Links returns the three stages as link lists.
func (p Pipeline) Links() (authorization, action, exception []ports.Link) {
	return AuthorizationLinks(p.Authorization), ActionLinks(p.Action), ExceptionLinks(p.Exception)
}

// KindsOf reports which filter kinds f implements.
func KindsOf(f ports.Filter) domain.FilterKind {
	var k domain.FilterKind
	if _, ok := f.(ports.AuthorizationFilter); ok {
		k |= domain.KindAuthorization
	}
	if _, ok := f.(ports.ActionFilter); ok {
		k |= domain.KindAction
	}
	if _, ok := f.(ports.ExceptionFilter); ok {
		k |= domain.KindException
	}
	return k
}

// Resolve splits descriptors into per-kind lists, preserving their order.
//
// For each kind, an override descriptor removes filters of that kind
// registered at a strictly lower scope. Afterwards, filters that disallow
// multiple instances keep only their last (most specific) occurrence.
func Resolve(descs []Descriptor) Pipeline {
	var overrideScope [3]domain.FilterScope
	var overridden [3]bool
	for _, d := range descs {
		for i, kind := range kindOrder {
			if d.Overrides.Has(kind) && (!overridden[i] || d.Scope > overrideScope[i]) {
				overrideScope[i] = d.Scope
				overridden[i] = true
			}
		}
	}

	var p Pipeline
	for i, kind := range kindOrder {
		var kept []Descriptor
		for _, d := range descs {
			if d.Filter == nil || !d.Kind().Has(kind) {
				continue
			}
			if overridden[i] && d.Scope < overrideScope[i] {
				continue
			}
			kept = append(kept, d)
		}
		kept = removeDuplicates(kept)

		for _, d := range kept {
			switch kind {
			case domain.KindAuthorization:
				p.Authorization = append(p.Authorization, d.Filter.(ports.AuthorizationFilter))
			case domain.KindAction:
				p.Action = append(p.Action, d.Filter.(ports.ActionFilter))
			case domain.KindException:
				p.Exception = append(p.Exception, d.Filter.(ports.ExceptionFilter))
			}
		}
	}
	return p
}

var kindOrder = [3]domain.FilterKind{domain.KindAuthorization, domain.KindAction, domain.KindException}

// removeDuplicates walks from the most specific end so the last occurrence
// of a single-instance filter type wins.
func removeDuplicates(descs []Descriptor) []Descriptor {
	seen := make(map[reflect.Type]bool)
	keep := make([]bool, len(descs))
	for i := len(descs) - 1; i >= 0; i-- {
		f := descs[i].Filter
		if f.AllowMultiple() {
			keep[i] = true
			continue
		}
		t, ok := identity(f)
		if !ok {
			keep[i] = true
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		keep[i] = true
	}

	out := make([]Descriptor, 0, len(descs))
	for i, d := range descs {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

// identity returns the type used to detect duplicates. Adapters report their
// wrapped hook; function types have no meaningful identity.
func identity(f ports.Filter) (reflect.Type, bool) {
	var v any = f
	if w, ok := f.(interface{ Inner() any }); ok {
		v = w.Inner()
	}
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() == reflect.Func {
		return nil, false
	}
	return t, true
}
