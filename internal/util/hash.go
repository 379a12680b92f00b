// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// KeyHash hashes a cache key for shard selection using 64-bit xxHash.
// It does not allocate for string keys.
func KeyHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// SplitCeil divides total across n parts rounding up, so the parts never sum
// below total. n <= 0 is treated as 1; total <= 0 yields 0.
func SplitCeil(total int64, n int) int64 {
	if total <= 0 {
		return 0
	}
	if n <= 1 {
		return total
	}
	return (total + int64(n) - 1) / int64(n)
}
