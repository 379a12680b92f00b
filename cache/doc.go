// Package cache is the in-process tier: a generic, sharded, string-keyed
// cache with pluggable eviction strategies (LRU by default), per-entry TTL,
// entry and byte limits, singleflight loading and lightweight metrics hooks.
//
// Design
//
//   - Concurrency: each shard owns one policy.Strategy behind one mutex.
//     Every strategy call, including lazy expiry inside Get, runs under it.
//     Shards default to 1 so eviction order is global; with more shards
//     both MaxEntries and MaxBytes are split evenly (rounded up) and the
//     shard is chosen by an xxHash of the key.
//
//   - Policies: lru, lfu, ttl, fifo, random and 2q live under policy/*.
//     PolicyByName maps configuration names to them.
//
//   - TTL: expiry is lazy on read and enforced by CleanupExpired, which a
//     janitor goroutine calls every Options.CleanupInterval when set.
//
//   - GetOrLoad: coalesces concurrent loads for the same key. If Loader is
//     nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     NoopMetrics is the default; metrics/prom and metrics/otel export them.
//
// Basic usage
//
//	c, err := cache.New[[]byte](cache.Options[[]byte]{MaxEntries: 10_000})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//
// Byte-bounded LFU with a janitor
//
//	pol, _ := cache.PolicyByName[string]("lfu", 0, 0)
//	c, _ := cache.New[string](cache.Options[string]{
//	    MaxEntries:      50_000,
//	    MaxBytes:        64 << 20,
//	    Policy:          pol,
//	    CleanupInterval: time.Minute,
//	})
package cache
