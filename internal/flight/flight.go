// Package flight implements a per-key single-flight registry.
//
// A caller either claims a key, becoming responsible for completing it, or
// joins the computation already in flight and waits for its outcome. One
// claimer may hold several keys at once, which lets a batched fetch act as
// the computation for every key it resolves. Handles are removed from the
// registry on completion, so later requests start fresh.
package flight

import (
	"context"
	"sync"
)

// Result is the outcome of one computation: a value, its presence, or the
// error the computation failed with.
type Result[V any] struct {
	Val V
	Ok  bool
	Err error
}

type call[V any] struct {
	done chan struct{}
	res  Result[V]
}

// Handle refers to one in-flight computation for one key.
type Handle[V any] struct {
	g   *Group[V]
	key string
	c   *call[V]
}

// Group tracks in-flight computations by key. Safe for concurrent use.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

func NewGroup[V any]() *Group[V] {
	return &Group[V]{calls: make(map[string]*call[V])}
}

// Claim registers the caller as the computer for key.
// claimed=false means another computation is already in flight; wait on the
// returned handle instead of starting a fetch. A successful claimer MUST call
// Complete exactly once, on every path.
func (g *Group[V]) Claim(key string) (h *Handle[V], claimed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return &Handle[V]{g: g, key: key, c: c}, false
	}
	c := &call[V]{done: make(chan struct{})}
	g.calls[key] = c
	return &Handle[V]{g: g, key: key, c: c}, true
}

// Complete publishes the outcome, releases all waiters and removes the key
// from the registry.
func (h *Handle[V]) Complete(res Result[V]) {
	h.g.mu.Lock()
	delete(h.g.calls, h.key)
	h.g.mu.Unlock()

	h.c.res = res
	close(h.c.done)
}

// Wait blocks until the computation completes or ctx is done. The returned
// error is ctx's; the computation's own failure is carried in Result.Err.
func (h *Handle[V]) Wait(ctx context.Context) (Result[V], error) {
	select {
	case <-h.c.done:
		return h.c.res, nil
	case <-ctx.Done():
		var zero Result[V]
		return zero, ctx.Err()
	}
}
