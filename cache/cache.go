package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/tiercache/internal/singleflight"
	"github.com/IvanBrykalov/tiercache/internal/util"
	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/policy/lru"
)

var (
	// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
	ErrNoLoader = errors.New("cache: no Loader provided")
	// ErrClosed is returned by GetOrLoad after Close.
	ErrClosed = errors.New("cache: closed")
)

// cache is a sharded in-memory KV store with a pluggable eviction policy.
type cache[V any] struct {
	shards []*shard[V]
	closed atomic.Bool
	opt    Options[V]

	sf singleflight.Group[string, V]

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New constructs a cache with the provided Options.
// Invalid limits are reported as errors wrapping policy.ErrInvalidCapacity.
func New[V any](opt Options[V]) (Cache[V], error) {
	if opt.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache: %w: max entries must be > 0, got %d", policy.ErrInvalidCapacity, opt.MaxEntries)
	}
	if opt.MaxBytes < 0 {
		return nil, fmt.Errorf("cache: %w: max bytes must be >= 0, got %d", policy.ErrInvalidCapacity, opt.MaxBytes)
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[V]()
	}
	if opt.Clock == nil {
		opt.Clock = policy.SystemClock
	}

	n := util.ShardCount(opt.Shards, opt.MaxEntries)

	c := &cache[V]{
		shards: make([]*shard[V], n),
		opt:    opt,
		stop:   make(chan struct{}),
	}
	perEntries := int(util.SplitCeil(int64(opt.MaxEntries), n))
	perBytes := util.SplitCeil(opt.MaxBytes, n)
	for i := range c.shards {
		s, err := newShard(perEntries, perBytes, &c.opt)
		if err != nil {
			return nil, fmt.Errorf("cache: shard %d: %w", i, err)
		}
		c.shards[i] = s
	}

	if opt.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.janitor(opt.CleanupInterval)
	}
	return c, nil
}

// Add inserts key→v only if absent, using DefaultTTL.
func (c *cache[V]) Add(key string, v V) bool {
	if c.closed.Load() {
		return false
	}
	ok := c.shardFor(key).add(key, v, c.opt.DefaultTTL)
	c.reportSize()
	return ok
}

// Set inserts or replaces key→v using DefaultTTL.
func (c *cache[V]) Set(key string, v V) bool {
	return c.SetWithTTL(key, v, c.opt.DefaultTTL)
}

// SetWithTTL inserts or replaces key→v with a per-key TTL.
func (c *cache[V]) SetWithTTL(key string, v V, ttl time.Duration) bool {
	if c.closed.Load() {
		return false
	}
	if ttl < 0 {
		ttl = 0
	}
	ok := c.shardFor(key).set(key, v, ttl)
	c.reportSize()
	return ok
}

// Get returns the value for key and a presence flag.
func (c *cache[V]) Get(key string) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.shardFor(key).get(key)
}

// TTL returns the remaining lifetime of a live entry with a TTL.
func (c *cache[V]) TTL(key string) (time.Duration, bool) {
	if c.closed.Load() {
		return 0, false
	}
	return c.shardFor(key).ttl(key)
}

func (c *cache[V]) Contains(key string) bool {
	if c.closed.Load() {
		return false
	}
	_, ok := c.shardFor(key).peekValue(key)
	return ok
}

// Remove deletes key if present.
func (c *cache[V]) Remove(key string) bool {
	if c.closed.Load() {
		return false
	}
	ok := c.shardFor(key).remove(key)
	if ok {
		c.reportSize()
	}
	return ok
}

// RemovePrefix deletes every key with the given prefix across all shards.
func (c *cache[V]) RemovePrefix(prefix string) int {
	if c.closed.Load() {
		return 0
	}
	n := 0
	for _, s := range c.shards {
		n += s.removePrefix(prefix)
	}
	c.reportSize()
	return n
}

// Clear drops every entry in every shard.
func (c *cache[V]) Clear() {
	for _, s := range c.shards {
		s.clear()
	}
	c.reportSize()
}

// CleanupExpired sweeps every shard.
func (c *cache[V]) CleanupExpired() int {
	n := 0
	for _, s := range c.shards {
		n += s.cleanupExpired()
	}
	if n > 0 {
		c.reportSize()
	}
	return n
}

// Len returns the total number of resident entries across all shards.
func (c *cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += int(s.entries.Load())
	}
	return total
}

// SizeBytes returns the accounted size across all shards.
func (c *cache[V]) SizeBytes() int64 {
	var total int64
	for _, s := range c.shards {
		total += s.bytes.Load()
	}
	return total
}

// Stats sums the per-shard counters.
func (c *cache[V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.Entries += int(s.entries.Load())
		st.Bytes += s.bytes.Load()
	}
	return st
}

// GetOrLoad returns the value for key; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key.
func (c *cache[V]) GetOrLoad(ctx context.Context, key string) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}

	v, _, err := c.sf.Do(ctx, key, func(ctx context.Context) (V, error) {
		// A previous flight may have filled the key while we queued.
		if v, ok := c.shardFor(key).peekValue(key); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err == nil {
			c.Set(key, v)
		}
		return v, err
	})
	return v, err
}

// Close stops the janitor and marks the cache closed.
func (c *cache[V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
	})
	c.wg.Wait()
	return nil
}

func (c *cache[V]) janitor(every time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.CleanupExpired()
		}
	}
}

// shardFor picks a shard by hashing the key.
func (c *cache[V]) shardFor(key string) *shard[V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[util.ShardIndex(util.KeyHash(key), len(c.shards))]
}

func (c *cache[V]) reportSize() {
	c.opt.Metrics.Size(c.Len(), c.SizeBytes())
}
