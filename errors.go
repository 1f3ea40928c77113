package collcache

import (
	"fmt"
)

// StoreError wraps a cache-store failure with the storage key and operation
// involved. The engine fails the call on store errors instead of guessing
// around the store; callers that prefer degrading should handle this error.
type StoreError struct {
	Key string
	Op  string // "get" or "put"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("collcache: cache store %s %q failed: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvalidateError reports a failed epoch bump during Invalidate. Entries of
// the region stay readable until a bump succeeds, so the caller must retry or
// escalate.
type InvalidateError struct {
	Region  string
	BumpErr error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate region %q: epoch bump failed: %v", e.Region, e.BumpErr)
}

func (e *InvalidateError) Unwrap() error { return e.BumpErr }
