package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Keys longer than this are replaced by a hash so provider keyspaces stay
// bounded regardless of what the key function produces.
const maxRawKeyLen = 128

// StorageKey builds the provider key for one cached entry.
// The "entry:<region>:" keyspace is owned by collcache.
func StorageKey(region, key string) string {
	if len(key) > maxRawKeyLen {
		sum := sha256.Sum256([]byte(key))
		key = hex.EncodeToString(sum[:16])
	}
	return "entry:" + region + ":" + key
}
