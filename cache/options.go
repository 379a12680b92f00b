package cache

import (
	"context"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// EvictReason explains why an entry was removed without an explicit Remove.
type EvictReason = policy.EvictReason

const (
	EvictPolicy   = policy.EvictPolicy
	EvictTTL      = policy.EvictTTL
	EvictCapacity = policy.EvictCapacity
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, bytes int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock = policy.Clock

// Options configures the in-process tier. Defaults applied in New():
//   - Shards == 0  => 1 (global eviction order); Shards < 0 => auto
//   - nil Policy   => LRU
//   - nil Metrics  => NoopMetrics
//   - nil Clock    => wall clock
type Options[V any] struct {
	// MaxEntries is the entry count limit. Must be > 0.
	MaxEntries int
	// MaxBytes limits the summed item sizes; 0 disables it.
	MaxBytes int64

	// Shards splits both limits evenly (ceil) across independent shards.
	Shards int

	// Policy builds one strategy per shard.
	Policy policy.Policy[V]

	// DefaultTTL applies to Add/Set (0 = no TTL).
	DefaultTTL time.Duration

	// Sizer estimates the cost of a value once at insertion.
	// nil => reflection-based estimate.
	Sizer func(V) int64

	// Loader fetches a value on miss. Used by GetOrLoad.
	Loader func(ctx context.Context, key string) (V, error)

	// OnEvict is called under the shard lock for every eviction and
	// expiry; it must not call back into the cache.
	OnEvict func(key string, v V, reason EvictReason)
	Metrics Metrics

	Clock Clock

	// CleanupInterval > 0 starts a janitor that sweeps expired entries
	// on that period until Close.
	CleanupInterval time.Duration
}
