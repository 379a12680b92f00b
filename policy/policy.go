// Package policy defines the eviction strategy contract shared by the
// in-process tier and the five built-in strategies (lru, lfu, ttl, fifo,
// random). Strategies are not synchronized: the owning cache shard calls
// every method under its lock.
package policy

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCapacity is returned by Config.Validate for limits that cannot
// hold a single item.
var ErrInvalidCapacity = errors.New("policy: invalid capacity")

// EvictReason explains why an entry was removed without an explicit Remove.
type EvictReason int

const (
	// EvictPolicy: removed by an explicit Evict call.
	EvictPolicy EvictReason = iota
	// EvictTTL: expired by TTL (lazy on access, or by a sweep).
	EvictTTL
	// EvictCapacity: removed to make room for an insertion.
	EvictCapacity
)

// String returns a stable label for the reason.
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	default:
		return "policy"
	}
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

type wallClock struct{}

func (wallClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// SystemClock is the wall-clock implementation used when Config.Clock is nil.
var SystemClock Clock = wallClock{}

// Config carries the limits and environment a strategy instance is built with.
type Config[V any] struct {
	// MaxEntries bounds the number of resident items. Must be > 0.
	MaxEntries int
	// MaxBytes bounds the sum of item sizes; 0 disables the byte limit.
	MaxBytes int64

	// Sizer estimates an item's cost once at insertion. nil => EstimateSize.
	Sizer func(V) int64

	// OnEvict is called for every item removed by expiry or eviction
	// (not for Remove/Clear). It runs under the shard lock.
	OnEvict func(key string, v V, reason EvictReason)

	// Clock overrides the time source. nil => SystemClock.
	Clock Clock
}

// Validate reports configuration that can never admit an item.
func (c Config[V]) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("%w: max entries must be > 0, got %d", ErrInvalidCapacity, c.MaxEntries)
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("%w: max bytes must be >= 0, got %d", ErrInvalidCapacity, c.MaxBytes)
	}
	return nil
}

// Strategy owns a bounded collection of items keyed by string and decides
// what to evict when capacity is exceeded.
//
// Semantics shared by all implementations:
//   - Get refreshes access bookkeeping on a live hit; an expired item is
//     removed (reported as EvictTTL) and reported absent.
//   - Put evicts until the new item fits (count and bytes, discounting any
//     item it replaces), then inserts. It fails only when the item alone is
//     larger than MaxBytes.
//   - Evict removes at least one item unless the collection is empty, in
//     which case it returns an empty slice. Removed keys are also passed to
//     Config.OnEvict.
//   - CleanupExpired removes every item whose TTL has elapsed.
type Strategy[V any] interface {
	Get(key string) (V, bool)
	// Peek returns a copy of the live item without touching bookkeeping.
	Peek(key string) (Item[V], bool)
	Put(key string, v V, ttl time.Duration) bool
	Remove(key string) bool
	Evict() []string
	CleanupExpired() []string

	Len() int
	SizeBytes() int64
	Keys() []string
	Clear()
}

// Policy is a factory that creates strategy instances; the in-process tier
// builds one per shard.
type Policy[V any] interface {
	Name() string
	New(Config[V]) Strategy[V]
}
