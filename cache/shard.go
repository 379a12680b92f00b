package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/IvanBrykalov/tiercache/internal/util"
	"github.com/IvanBrykalov/tiercache/policy"
)

// shard is an independent partition of the cache: one strategy instance
// behind one mutex. The strategy is never touched without mu.
type shard[V any] struct {
	// ---- guarded by mu ----
	mu    sync.Mutex
	strat policy.Strategy[V]
	clock Clock
	opt   *Options[V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_       util.CacheLinePad
	entries util.PaddedAtomicInt64
	bytes   util.PaddedAtomicInt64
	hits    util.PaddedAtomicUint64
	misses  util.PaddedAtomicUint64
	evicts  util.PaddedAtomicUint64
}

// newShard builds the shard's strategy with its slice of the global limits.
func newShard[V any](maxEntries int, maxBytes int64, opt *Options[V]) (*shard[V], error) {
	s := &shard[V]{clock: opt.Clock, opt: opt}
	cfg := policy.Config[V]{
		MaxEntries: maxEntries,
		MaxBytes:   maxBytes,
		Sizer:      opt.Sizer,
		OnEvict:    s.onEvict,
		Clock:      opt.Clock,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s.strat = opt.Policy.New(cfg)
	return s, nil
}

// onEvict runs under mu, from inside the strategy.
func (s *shard[V]) onEvict(key string, v V, reason EvictReason) {
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(key, v, reason)
	}
}

func (s *shard[V]) add(key string, v V, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.strat.Peek(key); ok {
		return false
	}
	ok := s.strat.Put(key, v, ttl)
	s.syncLocked()
	return ok
}

func (s *shard[V]) set(key string, v V, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.strat.Put(key, v, ttl)
	s.syncLocked()
	return ok
}

// get returns the value and counts a hit or miss.
func (s *shard[V]) get(key string) (V, bool) {
	s.mu.Lock()
	v, ok := s.strat.Get(key)
	s.syncLocked()
	s.mu.Unlock()

	if ok {
		s.hits.Add(1)
		s.opt.Metrics.Hit()
	} else {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
	}
	return v, ok
}

// peekValue reads a live value without counting or refreshing it.
func (s *shard[V]) peekValue(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.strat.Peek(key)
	return it.Value, ok
}

func (s *shard[V]) ttl(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.strat.Peek(key)
	if !ok {
		return 0, false
	}
	return it.Remaining(s.clock.NowUnixNano())
}

func (s *shard[V]) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.strat.Remove(key)
	s.syncLocked()
	return ok
}

func (s *shard[V]) removePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, k := range s.strat.Keys() {
		if strings.HasPrefix(k, prefix) && s.strat.Remove(k) {
			n++
		}
	}
	s.syncLocked()
	return n
}

func (s *shard[V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.strat.Clear()
	s.syncLocked()
}

func (s *shard[V]) cleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.strat.CleanupExpired())
	s.syncLocked()
	return n
}

// syncLocked mirrors the strategy's size into the lock-free counters.
func (s *shard[V]) syncLocked() {
	s.entries.Store(int64(s.strat.Len()))
	s.bytes.Store(s.strat.SizeBytes())
}
