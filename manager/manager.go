// Package manager fronts a backing store with the in-process tier and
// applies per-cache-type policy on top of both.
//
// Keys are namespaced as "{cacheType}:{key}" in every tier, which scopes
// Clear to one type with a prefix match. Reads try memory first, then the
// store; store hits are promoted into memory with the type's TTL. The
// backing store is advisory: its failures are logged and counted, and the
// caller sees a memory-only cache.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/internal/singleflight"
	"github.com/IvanBrykalov/tiercache/store"
)

// ErrNegativeTTL is returned by Set and SetMulti for ttl < 0.
var ErrNegativeTTL = errors.New("manager: negative ttl")

// Manager is a two-tier cache with per-type policies. It is safe for
// concurrent use; construct one and share it.
type Manager struct {
	mem   cache.Cache[any]
	store store.Store // nil when memory-only; wrapped with the timeout
	raw   store.Store
	opt   Options

	log     *zap.Logger
	metrics Metrics
	codec   Codec

	mu       sync.RWMutex
	policies map[string]Policy

	sf singleflight.Group[string, any]

	hits, misses, evictions atomic.Uint64
	sets, deletes           atomic.Uint64
	storeErrors             atomic.Uint64
	latency                 latencyWindow

	closeOnce sync.Once
}

// New builds a Manager. Invalid memory limits are reported as errors
// wrapping policy.ErrInvalidCapacity.
func New(opt Options) (*Manager, error) {
	if opt.Policies == nil {
		opt.Policies = DefaultPolicies()
	}
	if opt.Codec == nil {
		opt.Codec = JSONCodec{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.StoreTimeout == 0 {
		opt.StoreTimeout = defaultStoreTimeout
	}
	if opt.BatchConcurrency <= 0 {
		opt.BatchConcurrency = defaultBatchConcurrency
	}

	m := &Manager{
		raw:      opt.Store,
		opt:      opt,
		log:      opt.Logger.Named("tiercache"),
		metrics:  opt.Metrics,
		codec:    opt.Codec,
		policies: make(map[string]Policy, len(opt.Policies)),
	}
	for t, p := range opt.Policies {
		m.policies[t] = p
	}
	if opt.Store != nil {
		m.store = store.WithTimeout(opt.Store, opt.StoreTimeout)
	}

	memOpt := opt.Memory
	userEvict := memOpt.OnEvict
	memOpt.OnEvict = func(key string, v any, reason cache.EvictReason) {
		m.evictions.Add(1)
		if userEvict != nil {
			userEvict(key, v, reason)
		}
	}
	mem, err := cache.New(memOpt)
	if err != nil {
		return nil, fmt.Errorf("manager: memory tier: %w", err)
	}
	m.mem = mem
	return m, nil
}

// Configure registers or replaces the policy for cacheType.
func (m *Manager) Configure(cacheType string, p Policy) {
	m.mu.Lock()
	m.policies[cacheType] = p
	m.mu.Unlock()
}

// Policy returns the effective policy for cacheType.
func (m *Manager) Policy(cacheType string) Policy {
	m.mu.RLock()
	p, ok := m.policies[cacheType]
	m.mu.RUnlock()
	if !ok {
		return DefaultPolicy
	}
	return p
}

// Get returns the cached value for key. Every call records a hit or miss
// and its latency, whichever tier answered.
func (m *Manager) Get(ctx context.Context, cacheType, key string) (any, bool) {
	start := time.Now()
	v, ok := m.lookup(ctx, cacheType, key)
	m.record(cacheType, ok, time.Since(start))
	return v, ok
}

// GetOrDefault is Get returning def on miss.
func (m *Manager) GetOrDefault(ctx context.Context, cacheType, key string, def any) any {
	if v, ok := m.Get(ctx, cacheType, key); ok {
		return v
	}
	return def
}

// Exists reports whether key is cached in any tier. It counts as a Get.
func (m *Manager) Exists(ctx context.Context, cacheType, key string) bool {
	_, ok := m.Get(ctx, cacheType, key)
	return ok
}

// Set writes value to every tier the type's policy designates, memory
// first. ttl == 0 selects the type's TTL. The result is true when every
// designated tier accepted the value; an unreachable store counts as
// accepted unless it is the only tier.
func (m *Manager) Set(ctx context.Context, cacheType, key string, value any, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		return false, fmt.Errorf("%w: %v", ErrNegativeTTL, ttl)
	}
	p := m.Policy(cacheType)
	if ttl == 0 {
		ttl = p.TTL
	}
	nk := namespaced(cacheType, key)
	tiers := m.tiers(p)
	if tiers == 0 {
		m.log.Debug("set skipped: no tier available",
			zap.String("cache_type", cacheType), zap.Stringer("tiers", p.Tiers))
		m.metrics.Write(cacheType, false)
		return false, nil
	}

	ok := true
	if tiers.Has(TierMemory) {
		if !m.mem.SetWithTTL(nk, value, ttl) {
			m.log.Debug("memory tier rejected value", zap.String("key", nk))
			ok = false
		}
	}
	if tiers.Has(TierStore) && !m.setStore(ctx, nk, value, ttl, tiers == TierStore) {
		ok = false
	}
	if ok {
		m.sets.Add(1)
	}
	m.metrics.Write(cacheType, ok)
	return ok, nil
}

// Delete removes key from every tier and reports whether any tier held it.
func (m *Manager) Delete(ctx context.Context, cacheType, key string) bool {
	nk := namespaced(cacheType, key)
	removed := m.mem.Remove(nk)
	if m.store != nil {
		ok, err := m.store.Delete(ctx, nk)
		if err != nil {
			m.storeFailed("delete", nk, err)
		}
		removed = removed || ok
	}
	if removed {
		m.deletes.Add(1)
	}
	return removed
}

// GetTTL returns the remaining lifetime of key. A resident memory entry
// answers on its own, so one without a TTL reports absent; the store is
// asked only when memory does not hold key.
func (m *Manager) GetTTL(ctx context.Context, cacheType, key string) (time.Duration, bool) {
	nk := namespaced(cacheType, key)
	if m.mem.Contains(nk) {
		return m.mem.TTL(nk)
	}
	if m.store == nil {
		return 0, false
	}
	d, ok, err := m.store.TTL(ctx, nk)
	if err != nil {
		m.storeFailed("ttl", nk, err)
		return 0, false
	}
	return d, ok
}

// Clear removes every entry of cacheType from both tiers, or everything
// when cacheType is empty. It returns the number of entries removed.
// Statistics are kept.
func (m *Manager) Clear(ctx context.Context, cacheType string) int {
	prefix := ""
	if cacheType != "" {
		prefix = cacheType + ":"
	}
	n := m.mem.RemovePrefix(prefix)
	if m.store != nil {
		flushed, err := m.store.FlushPrefix(ctx, prefix)
		if err != nil {
			m.storeFailed("flush", prefix, err)
		}
		n += flushed
	}
	scope := cacheType
	if scope == "" {
		scope = "all"
	}
	m.log.Info("cache cleared", zap.String("scope", scope), zap.Int("removed", n))
	return n
}

// CleanupExpired sweeps the memory tier. Removed entries count as
// evictions.
func (m *Manager) CleanupExpired() int {
	n := m.mem.CleanupExpired()
	if n > 0 {
		m.log.Debug("expired entries removed", zap.Int("count", n))
	}
	return n
}

// Stats returns a snapshot with derived fields recomputed. Reading stats
// does not change them.
func (m *Manager) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Evictions:     m.evictions.Load(),
		Sets:          m.sets.Load(),
		Deletes:       m.deletes.Load(),
		StoreErrors:   m.storeErrors.Load(),
		MemoryEntries: m.mem.Len(),
		MemoryBytes:   m.mem.SizeBytes(),
		StoreEntries:  -1,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	s.AverageLatency = m.latency.mean()
	s.AverageLatencyMs = float64(s.AverageLatency) / float64(time.Millisecond)

	if m.store != nil {
		n, err := store.Count(ctx, m.store)
		switch {
		case err == nil:
			s.StoreEntries = n
		case !errors.Is(err, store.ErrCountUnsupported):
			m.log.Debug("store count failed", zap.Error(err))
		}
	}
	return s
}

// GetOrLoad returns the cached value, or calls load once per key across
// concurrent callers and caches its result with the type's policy. Load
// errors are returned and nothing is cached.
func (m *Manager) GetOrLoad(ctx context.Context, cacheType, key string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := m.Get(ctx, cacheType, key); ok {
		return v, nil
	}
	v, _, err := m.sf.Do(ctx, namespaced(cacheType, key), func(ctx context.Context) (any, error) {
		// A concurrent leader may have filled memory while we waited.
		if v, ok := m.mem.Get(namespaced(cacheType, key)); ok {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := m.Set(ctx, cacheType, key, v, 0); err != nil {
			return nil, err
		}
		return v, nil
	})
	return v, err
}

// Close stops the memory janitor and, with Options.CloseStore, releases
// the backing store. It is safe to call more than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.mem.Close()
		if c, ok := m.raw.(io.Closer); ok && m.opt.CloseStore {
			err = errors.Join(err, c.Close())
		}
	})
	return err
}

// Lookup is a typed Get. Values promoted from the store arrive in the
// codec's generic form and are converted into T through the codec.
func Lookup[T any](ctx context.Context, m *Manager, cacheType, key string) (T, bool) {
	var zero T
	v, ok := m.Get(ctx, cacheType, key)
	if !ok {
		return zero, false
	}
	if t, ok := v.(T); ok {
		return t, true
	}
	raw, err := m.codec.Marshal(v)
	if err != nil {
		m.log.Warn("lookup: re-encode failed", zap.String("cache_type", cacheType), zap.Error(err))
		return zero, false
	}
	var out T
	if err := m.codec.Unmarshal(raw, &out); err != nil {
		m.log.Warn("lookup: convert failed", zap.String("cache_type", cacheType),
			zap.String("type", fmt.Sprintf("%T", zero)), zap.Error(err))
		return zero, false
	}
	return out, true
}

func (m *Manager) lookup(ctx context.Context, cacheType, key string) (any, bool) {
	p := m.Policy(cacheType)
	nk := namespaced(cacheType, key)
	tiers := m.tiers(p)

	if tiers.Has(TierMemory) {
		if v, ok := m.mem.Get(nk); ok {
			return v, true
		}
	}
	if !tiers.Has(TierStore) {
		return nil, false
	}

	raw, ok, err := m.store.Get(ctx, nk)
	if err != nil {
		m.storeFailed("get", nk, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var v any
	if err := m.codec.Unmarshal(raw, &v); err != nil {
		m.log.Warn("decode failed", zap.String("key", nk), zap.Error(err))
		return nil, false
	}
	if tiers.Has(TierMemory) && m.mem.SetWithTTL(nk, v, p.TTL) {
		m.metrics.Promote(cacheType)
	}
	return v, true
}

func (m *Manager) setStore(ctx context.Context, nk string, value any, ttl time.Duration, only bool) bool {
	raw, err := m.codec.Marshal(value)
	if err != nil {
		m.log.Warn("encode failed, store write skipped", zap.String("key", nk), zap.Error(err))
		return false
	}
	if err := m.store.Set(ctx, nk, raw, ttl); err != nil {
		m.storeFailed("set", nk, err)
		return !only
	}
	return true
}

// tiers narrows p.Tiers to the layers this manager has.
func (m *Manager) tiers(p Policy) Tier {
	t := p.Tiers
	if m.store == nil {
		t &^= TierStore
	}
	return t
}

func (m *Manager) record(cacheType string, hit bool, d time.Duration) {
	if hit {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	m.latency.add(d)
	m.metrics.Request(cacheType, hit, d)
}

func (m *Manager) storeFailed(op, key string, err error) {
	m.storeErrors.Add(1)
	m.metrics.StoreError(op)
	m.log.Warn("backing store call failed",
		zap.String("op", op), zap.String("key", key), zap.Error(err))
}

func namespaced(cacheType, key string) string { return cacheType + ":" + key }
