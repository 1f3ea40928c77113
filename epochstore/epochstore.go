// Package epochstore tracks the invalidation epoch of each cache region.
//
// Bumping a region's epoch makes every entry written under an older epoch
// unreadable; readers self-heal such entries on access instead of the store
// enumerating and deleting them. Use Local (default) for in-process epochs,
// or Redis to share epochs across replicas and survive restarts.
package epochstore

import (
	"context"
	"time"
)

type Store interface {
	// Snapshot returns the current epoch of region; missing => 0.
	Snapshot(ctx context.Context, region string) (uint64, error)
	// Bump atomically increments and returns the new epoch.
	Bump(ctx context.Context, region string) (uint64, error)
	// Cleanup prunes long-inactive metadata if applicable.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
