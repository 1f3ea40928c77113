package collcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/collcache/codec"
	es "github.com/unkn0wn-root/collcache/epochstore"
	"github.com/unkn0wn-root/collcache/operation"
	pr "github.com/unkn0wn-root/collcache/provider"
)

// Source is the backing data provider the cache sits in front of, typically a
// database-access layer. Implementations must be safe for concurrent use.
type Source[K comparable, V any] interface {
	// FetchOne returns the value for key. ok=false means "not found", which
	// is not an error and is never cached.
	FetchOne(ctx context.Context, key K) (V, bool, error)

	// FetchMany returns values for the subset of keys it can satisfy.
	// Keys absent from the result are simply unsatisfied.
	FetchMany(ctx context.Context, keys []K) (map[K]V, error)

	// FetchAll returns every record in the backing source.
	FetchAll(ctx context.Context) (map[K]V, error)
}

// Cache is the per-element cache-aside API driven by one resolved operation.
// All methods are safe for concurrent use.
type Cache[K comparable, V any] interface {
	Enabled() bool
	Close(ctx context.Context) error

	// GetOne returns the value for key. On a hit the backing source is never
	// invoked; on a miss the source is asked for exactly that key and the
	// result is cached under it.
	GetOne(ctx context.Context, key K) (V, bool, error)

	// GetMany partitions keys into cache hits and misses, issues at most one
	// batched FetchMany for the misses, caches every fetched pair under its
	// own key and returns the merged mapping. Keys neither cached nor
	// satisfied by the source are omitted.
	GetMany(ctx context.Context, keys []K) (map[K]V, error)

	// GetAll fetches the full data set from the backing source without
	// consulting the cache, seeds the per-key cache with every returned pair
	// and returns the mapping.
	GetAll(ctx context.Context) (map[K]V, error)

	// Invalidate discards all entries in the operation's cache regions.
	Invalidate(ctx context.Context) error
}

// Options tune a Cache. Operation, Provider, Codec and Source are required;
// everything else has defaults.
type Options[K comparable, V any] struct {
	// Required
	Operation operation.Operation // resolved descriptor; CacheNames must be non-empty
	Provider  pr.Provider
	Codec     c.Codec[V]
	Source    Source[K, V]

	KeyFunc func(K) string // storage key per value key; nil => fmt.Sprint

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	DefaultTTL      time.Duration // 0 => 10m
	CleanupInterval time.Duration // epoch metadata sweep; 0 => 1h
	EpochRetention  time.Duration // 0 => 30d
	Epochs          es.Store      // nil => in-process Local store
	CloseProvider   bool          // set true only if this cache exclusively owns the provider
	Disabled        bool          // default false (enabled); disabled => pass-through
}

func New[K comparable, V any](opts Options[K, V]) (Cache[K, V], error) {
	return newCache[K, V](opts)
}
