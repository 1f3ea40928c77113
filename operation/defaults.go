package operation

import "sync"

// Defaults holds the type-level fallback settings applied by Build when an
// operation leaves the corresponding attribute unset.
type Defaults struct {
	CacheNames    []string
	KeyGenerator  string
	CacheManager  string
	CacheResolver string
}

// ConfigSource supplies the type-level configuration for a declaring type.
// ok=false means the type carries no defaults; that is not an error.
type ConfigSource interface {
	TypeConfig(typeName string) (Defaults, bool)
}

// DefaultsCache memoizes Defaults per declaring type. The first caller for a
// type computes the value; concurrent first-callers join the same computation
// and all observe the same fully built result. Entries are never recomputed.
type DefaultsCache struct {
	src ConfigSource

	mu      sync.Mutex
	entries map[string]*defaultsEntry
}

type defaultsEntry struct {
	once sync.Once
	d    Defaults
}

func NewDefaultsCache(src ConfigSource) *DefaultsCache {
	return &DefaultsCache{src: src, entries: make(map[string]*defaultsEntry)}
}

// For returns the memoized defaults for typeName, computing them on first use.
func (c *DefaultsCache) For(typeName string) Defaults {
	c.mu.Lock()
	e, ok := c.entries[typeName]
	if !ok {
		e = &defaultsEntry{}
		c.entries[typeName] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		if c.src == nil {
			return
		}
		if d, ok := c.src.TypeConfig(typeName); ok {
			e.d = d
		}
	})
	return e.d
}
