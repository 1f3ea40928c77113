package collcache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/unkn0wn-root/collcache/codec"
	es "github.com/unkn0wn-root/collcache/epochstore"
	"github.com/unkn0wn-root/collcache/internal/flight"
	"github.com/unkn0wn-root/collcache/internal/util"
	"github.com/unkn0wn-root/collcache/internal/wire"
	"github.com/unkn0wn-root/collcache/operation"
	"github.com/unkn0wn-root/collcache/provider"
)

const (
	defaultEpochRetention = 30 * 24 * time.Hour
	defaultSweep          = time.Hour
)

type cache[K comparable, V any] struct {
	op       operation.Operation
	regions  []string // op.CacheNames; probed in order on read, all written
	provider provider.Provider
	codec    codec.Codec[V]
	source   Source[K, V]
	keyFn    func(K) string
	log      Logger
	hooks    Hooks
	enabled  bool
	ttl      time.Duration

	epochs    es.Store
	ownEpochs bool

	flights *flight.Group[V] // used only when op.Sync

	closeProvider bool
}

func newCache[K comparable, V any](opts Options[K, V]) (*cache[K, V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("collcache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("collcache: codec is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("collcache: source is required")
	}
	if len(opts.Operation.CacheNames) == 0 {
		return nil, fmt.Errorf("collcache: operation %q resolved to no cache regions", opts.Operation.Name)
	}

	c := &cache[K, V]{
		op:            opts.Operation,
		regions:       opts.Operation.CacheNames,
		provider:      opts.Provider,
		codec:         opts.Codec,
		source:        opts.Source,
		enabled:       !opts.Disabled,
		closeProvider: opts.CloseProvider,
		flights:       flight.NewGroup[V](),
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.ttl = coalesce[time.Duration](opts.DefaultTTL, 10*time.Minute)
	sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
	retention := coalesce[time.Duration](opts.EpochRetention, defaultEpochRetention)

	if opts.KeyFunc != nil {
		c.keyFn = opts.KeyFunc
	} else {
		c.keyFn = func(k K) string { return fmt.Sprint(k) }
	}

	if opts.Epochs != nil {
		c.epochs = opts.Epochs
	} else {
		c.epochs = es.NewLocal(sweep, retention)
		c.ownEpochs = true
	}

	return c, nil
}

func (c *cache[K, V]) Enabled() bool { return c.enabled }

func (c *cache[K, V]) Close(ctx context.Context) error {
	if c.ownEpochs && c.epochs != nil {
		_ = c.epochs.Close(ctx)
	}
	if c.closeProvider && c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[K, V]) GetOne(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if !c.enabled {
		return c.source.FetchOne(ctx, key)
	}
	ks := c.keyFn(key)
	if v, ok, err := c.lookup(ctx, ks); err != nil || ok {
		return v, ok, err
	}
	if !c.op.Sync {
		return c.fetchOneAndStore(ctx, key, ks)
	}

	h, claimed := c.flights.Claim(ks)
	if !claimed {
		c.hooks.FlightJoined(ks)
		res, err := h.Wait(ctx)
		if err != nil {
			return zero, false, err
		}
		return res.Val, res.Ok, res.Err
	}
	// the claim may have raced a completed flight that already populated the
	// cache; re-check before fetching
	if v, ok, err := c.lookup(ctx, ks); err != nil || ok {
		h.Complete(flight.Result[V]{Val: v, Ok: ok, Err: err})
		return v, ok, err
	}
	v, ok, err := c.fetchOneAndStore(ctx, key, ks)
	h.Complete(flight.Result[V]{Val: v, Ok: ok, Err: err})
	return v, ok, err
}

func (c *cache[K, V]) GetMany(ctx context.Context, keys []K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	if !c.enabled {
		return c.source.FetchMany(ctx, dedup(keys))
	}

	var miss []K
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		v, ok, err := c.lookup(ctx, c.keyFn(k))
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		} else {
			miss = append(miss, k)
		}
	}
	if len(miss) == 0 {
		return out, nil
	}

	// deterministic batch order
	sort.Slice(miss, func(i, j int) bool { return c.keyFn(miss[i]) < c.keyFn(miss[j]) })

	if !c.op.Sync {
		fetched, err := c.fetchManyAndStore(ctx, miss)
		if err != nil {
			return nil, err
		}
		for k, v := range fetched {
			out[k] = v
		}
		return out, nil
	}

	// Claim every miss key; the batch is "the" computation for the keys we
	// win, and we join the in-flight computation for the rest.
	ours := make([]K, 0, len(miss))
	ourHandles := make(map[K]*flight.Handle[V], len(miss))
	type waiter struct {
		key K
		h   *flight.Handle[V]
	}
	var waiters []waiter
	for _, k := range miss {
		h, claimed := c.flights.Claim(c.keyFn(k))
		if claimed {
			ours = append(ours, k)
			ourHandles[k] = h
		} else {
			c.hooks.FlightJoined(c.keyFn(k))
			waiters = append(waiters, waiter{key: k, h: h})
		}
	}

	if len(ours) > 0 {
		fetched, err := c.fetchManyAndStore(ctx, ours)
		if err != nil {
			for _, h := range ourHandles {
				h.Complete(flight.Result[V]{Err: err})
			}
			return nil, err
		}
		for _, k := range ours {
			v, ok := fetched[k]
			ourHandles[k].Complete(flight.Result[V]{Val: v, Ok: ok})
			if ok {
				out[k] = v
			}
		}
	}

	for _, w := range waiters {
		res, err := w.h.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Ok {
			out[w.key] = res.Val
		}
	}
	return out, nil
}

// GetAll never consults the cache before fetching; a full scan is
// authoritative and overwrites whatever is cached per key.
func (c *cache[K, V]) GetAll(ctx context.Context) (map[K]V, error) {
	if !c.enabled {
		return c.source.FetchAll(ctx)
	}
	obs := c.snapshotEpochs(ctx)
	all, err := c.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range all {
		if err := c.store(ctx, c.keyFn(k), v, obs); err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (c *cache[K, V]) Invalidate(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	for _, region := range c.regions {
		newEpoch, err := c.epochs.Bump(ctx, region)
		if err != nil {
			c.hooks.EpochBumpError(region, err)
			return &InvalidateError{Region: region, BumpErr: err}
		}
		c.log.Debug("invalidated region", Fields{"region": region, "newEpoch": newEpoch})
	}
	return nil
}

// fetchOneAndStore snapshots the region epochs first so a concurrent
// invalidation makes the subsequent write a no-op instead of resurrecting a
// value fetched before the invalidation.
func (c *cache[K, V]) fetchOneAndStore(ctx context.Context, key K, ks string) (V, bool, error) {
	var zero V
	obs := c.snapshotEpochs(ctx)
	v, ok, err := c.source.FetchOne(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		// absence is not cached
		return zero, false, nil
	}
	if err := c.store(ctx, ks, v, obs); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (c *cache[K, V]) fetchManyAndStore(ctx context.Context, keys []K) (map[K]V, error) {
	obs := c.snapshotEpochs(ctx)
	c.hooks.BatchFetch(c.regions[0], len(keys))
	fetched, err := c.source.FetchMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	for k, v := range fetched {
		if err := c.store(ctx, c.keyFn(k), v, obs); err != nil {
			return nil, err
		}
	}
	return fetched, nil
}

// lookup probes the operation's regions in declared order and returns the
// first valid hit. Corrupt or stale entries are deleted and treated as a
// miss (self-heal).
func (c *cache[K, V]) lookup(ctx context.Context, ks string) (V, bool, error) {
	var zero V
	for _, region := range c.regions {
		sk := util.StorageKey(region, ks)
		raw, ok, err := c.provider.Get(ctx, sk)
		if err != nil {
			return zero, false, &StoreError{Key: sk, Op: "get", Err: err}
		}
		if !ok {
			continue
		}
		epoch, payload, err := wire.DecodeEntry(raw)
		if err != nil {
			_ = c.provider.Del(ctx, sk)
			c.hooks.SelfHeal(sk, "corrupt")
			continue
		}
		if epoch != c.snapshotEpoch(ctx, region) {
			_ = c.provider.Del(ctx, sk)
			c.hooks.SelfHeal(sk, "epoch_mismatch")
			continue
		}
		v, err := c.codec.Decode(payload)
		if err != nil {
			_ = c.provider.Del(ctx, sk)
			c.hooks.SelfHeal(sk, "value_decode")
			continue
		}
		return v, true, nil
	}
	return zero, false, nil
}

// store writes the value into every region, each conditionally on the
// region's epoch still matching the observed snapshot.
func (c *cache[K, V]) store(ctx context.Context, ks string, v V, observed map[string]uint64) error {
	payload, err := c.codec.Encode(v)
	if err != nil {
		return err
	}
	for _, region := range c.regions {
		obs := observed[region]
		if c.snapshotEpoch(ctx, region) != obs {
			// region invalidated since the fetch began; skip stale write
			c.log.Debug("store skipped (epoch moved)", Fields{"region": region, "key": ks})
			continue
		}
		sk := util.StorageKey(region, ks)
		ok, err := c.provider.Set(ctx, sk, wire.EncodeEntry(obs, payload), c.ttl)
		if err != nil {
			return &StoreError{Key: sk, Op: "put", Err: err}
		}
		if !ok {
			c.hooks.ProviderSetRejected(sk)
			c.log.Debug("store rejected by provider (pressure)", Fields{"key": sk})
		}
	}
	return nil
}

func (c *cache[K, V]) snapshotEpochs(ctx context.Context) map[string]uint64 {
	out := make(map[string]uint64, len(c.regions))
	for _, region := range c.regions {
		out[region] = c.snapshotEpoch(ctx, region)
	}
	return out
}

func (c *cache[K, V]) snapshotEpoch(ctx context.Context, region string) uint64 {
	e, err := c.epochs.Snapshot(ctx, region)
	if err != nil {
		// conservative: 0 makes pending writes skip and reads self-heal
		c.hooks.EpochSnapshotError(region, err)
		c.log.Warn("epoch snapshot error", Fields{"region": region, "err": err})
		return 0
	}
	return e
}

func dedup[K comparable](keys []K) []K {
	out := make([]K, 0, len(keys))
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
