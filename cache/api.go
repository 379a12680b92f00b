package cache

import (
	"context"
	"time"
)

// Cache is the sharded in-process tier. Keys are strings; values are owned
// by the cache once stored. All methods are safe for concurrent use.
//
// Each shard wraps one eviction strategy behind one mutex, so every
// strategy call (including lazy expiry inside Get) is serialized per shard.
type Cache[V any] interface {
	// Add inserts key→v only if key is absent (or expired), using DefaultTTL.
	// Returns false if a live value exists or the value cannot fit.
	Add(key string, v V) bool

	// Set inserts or replaces key→v using DefaultTTL.
	// Returns false only when the value alone exceeds the byte limit.
	Set(key string, v V) bool

	// SetWithTTL inserts or replaces key→v with a per-key TTL.
	// A zero ttl disables expiration for this entry (the ttl policy
	// substitutes its own default).
	SetWithTTL(key string, v V, ttl time.Duration) bool

	// Get returns the value for key and refreshes the entry according to
	// the active policy. Expired entries are removed and reported absent.
	Get(key string) (V, bool)

	// TTL returns the remaining lifetime of key. ok is false when key is
	// absent or has no TTL.
	TTL(key string) (remaining time.Duration, ok bool)

	// Contains reports whether a live entry exists for key without
	// touching it or recording a hit or miss.
	Contains(key string) bool

	// Remove deletes key if present.
	Remove(key string) bool

	// RemovePrefix deletes every key starting with prefix and returns how
	// many were removed. An empty prefix removes everything.
	RemovePrefix(prefix string) int

	// Clear drops every entry. Evictions are not reported.
	Clear()

	// CleanupExpired sweeps every shard and returns the number of expired
	// entries removed.
	CleanupExpired() int

	// Len returns the number of resident entries across all shards.
	Len() int

	// SizeBytes returns the accounted size of resident entries.
	SizeBytes() int64

	// Stats returns a snapshot of the per-shard counters, summed.
	Stats() Stats

	// GetOrLoad returns the value for key, loading it via Options.Loader on
	// miss. Concurrent loads for the same key are coalesced.
	GetOrLoad(ctx context.Context, key string) (V, error)

	// Close stops the janitor. Later operations are ignored.
	Close() error
}

// Stats is a point-in-time view of the tier's counters. Counters are read
// without locks and may be mutually inconsistent by a few operations.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Bytes     int64
}
