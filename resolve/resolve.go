// Package resolve turns the declarative settings discovered on an element
// into validated cache operations and builds the ahead-of-time element table
// used by the interception layer.
package resolve

import (
	"github.com/unkn0wn-root/collcache/operation"
)

// Source is the external declaration source. Merged returns settings composed
// across the element's whole supertype/interface chain; Local returns only
// settings declared directly on the element itself.
type Source interface {
	Merged(el operation.Element) []operation.Attributes
	Local(el operation.Element) []operation.Attributes
}

// Resolver applies the local-overrides-merged precedence and builds
// descriptors with the memoized per-type defaults applied.
type Resolver struct {
	src      Source
	defaults *operation.DefaultsCache
}

func New(src Source, cfg operation.ConfigSource) *Resolver {
	return &Resolver{src: src, defaults: operation.NewDefaultsCache(cfg)}
}

// Resolve returns the cache operations for el. A nil result means the element
// is not cache-enabled; most elements are not.
//
// When the merged view yields more than one distinct operation, declarations
// made directly on the element replace the merged result entirely (an
// override fully supersedes inherited configuration, never merges with it).
// The merged result stands only when no local declaration exists.
func (r *Resolver) Resolve(el operation.Element) ([]operation.Operation, error) {
	ops, err := r.build(el, r.src.Merged(el))
	if err != nil {
		return nil, err
	}
	if len(ops) > 1 {
		localOps, err := r.build(el, r.src.Local(el))
		if err != nil {
			return nil, err
		}
		if localOps != nil {
			return localOps, nil
		}
	}
	return ops, nil
}

func (r *Resolver) build(el operation.Element, attrs []operation.Attributes) ([]operation.Operation, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	d := r.defaults.For(el.Type)
	ops := make([]operation.Operation, 0, len(attrs))
	for _, a := range attrs {
		op, err := operation.Build(el, a, d)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}
