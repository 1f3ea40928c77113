// Package collcache implements declarative per-element caching for methods
// that return collections or key→value mappings. A bulk fetch and its
// single-record sibling share one per-key cache: bulk reads only hit the
// backing source for keys not already cached, populate the cache for every
// key they fetch, and a full scan seeds the cache for every record returned.
//
// Components:
//   - operation: descriptor model; raw declarative attributes plus memoized
//     type-level defaults become one validated, immutable Operation.
//   - resolve: precedence between hierarchy-merged and locally declared
//     settings, and the ahead-of-time element→operations table.
//   - Cache[K, V] (this package): the runtime engine built from one
//     Operation, a byte Provider, a Codec[V] and a backing Source[K, V].
//
// Keys:
//
//	entry:<region>:<key> - per-key entries, one per cache region
//
// Invalidation uses per-region epochs (epochstore): entries are framed with
// the epoch they were written under; Invalidate bumps the region epoch and
// readers self-heal entries carrying an older epoch. A fetch snapshots the
// epoch before calling the backing source and writes conditionally on the
// epoch being unchanged, so an invalidation racing a fetch wins.
//
// With Operation.Sync set, concurrent misses for the same key converge on a
// single backing-source invocation; a batched GetMany fetch participates as
// the computation for every key it claims.
package collcache
