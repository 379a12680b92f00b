// Package ttl implements the TTL-priority eviction strategy: expired items
// go first, and under capacity pressure the item closest to expiry is
// evicted even if it has not expired yet.
package ttl

import (
	"container/heap"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// DefaultTTL is applied to items inserted without a TTL.
const DefaultTTL = time.Hour

// compactFactor bounds stale records: once the heap holds more than
// compactFactor records per live key it is rebuilt from the live items.
const compactFactor = 4

type entry struct {
	expiry int64
	seq    uint64
	key    string
}

type expiryHeap []entry

func (h expiryHeap) Len() int { return len(h) }
func (h expiryHeap) Less(i, j int) bool {
	if h[i].expiry != h[j].expiry {
		return h[i].expiry < h[j].expiry
	}
	return h[i].seq < h[j].seq
}
func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// ttlStrategy keeps a min-heap of deadlines.
//
// Lazy invalidation: replacing or removing a key leaves its old heap record
// behind. A popped record is acted on only if its seq equals live[key];
// anything else is stale and dropped.
type ttlStrategy[V any] struct {
	t          *policy.Table[V]
	h          expiryHeap
	live       map[string]uint64
	seq        uint64
	defaultTTL time.Duration
}

type ttlPolicy[V any] struct{ defaultTTL time.Duration }

// New returns a Policy factory. defaultTTL <= 0 selects DefaultTTL.
func New[V any](defaultTTL time.Duration) policy.Policy[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return ttlPolicy[V]{defaultTTL: defaultTTL}
}

// Name implements policy.Policy.
func (ttlPolicy[V]) Name() string { return "ttl" }

// New implements policy.Policy.
func (p ttlPolicy[V]) New(cfg policy.Config[V]) policy.Strategy[V] {
	return &ttlStrategy[V]{
		t:          policy.NewTable(cfg),
		live:       make(map[string]uint64),
		defaultTTL: p.defaultTTL,
	}
}

// Get sweeps due deadlines, then returns a live value.
func (s *ttlStrategy[V]) Get(key string) (V, bool) {
	s.CleanupExpired()
	it, ok := s.t.Lookup(key)
	if !ok {
		var zero V
		return zero, false
	}
	now := s.t.Now()
	if it.Expired(now) {
		s.drop(key, policy.EvictTTL)
		var zero V
		return zero, false
	}
	it.Touch(now)
	return it.Value, true
}

// Peek returns a copy of the live item.
func (s *ttlStrategy[V]) Peek(key string) (policy.Item[V], bool) {
	it, ok := s.t.Lookup(key)
	if !ok || it.Expired(s.t.Now()) {
		return policy.Item[V]{}, false
	}
	return *it, true
}

// Put sweeps due deadlines, then inserts key. A zero ttl takes the
// strategy default.
func (s *ttlStrategy[V]) Put(key string, v V, ttl time.Duration) bool {
	s.CleanupExpired()
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	it := s.t.Make(key, v, ttl)
	if s.t.Oversized(it) {
		s.Remove(key)
		return false
	}
	s.t.MakeRoom(key, it.Size, func() []string { return s.evict(policy.EvictCapacity) })
	s.t.Insert(it)
	s.push(key, it.Deadline())
	return true
}

// Remove deletes key; its heap record goes stale until the next compaction.
func (s *ttlStrategy[V]) Remove(key string) bool {
	if _, ok := s.t.Delete(key); !ok {
		return false
	}
	delete(s.live, key)
	return true
}

// Evict removes every expired item if there are any; otherwise it removes
// the live item nearest to its deadline.
func (s *ttlStrategy[V]) Evict() []string { return s.evict(policy.EvictPolicy) }

func (s *ttlStrategy[V]) evict(reason policy.EvictReason) []string {
	if expired := s.CleanupExpired(); len(expired) > 0 {
		return expired
	}
	for s.h.Len() > 0 {
		e := heap.Pop(&s.h).(entry)
		if seq, ok := s.live[e.key]; !ok || seq != e.seq {
			continue
		}
		s.drop(e.key, reason)
		return []string{e.key}
	}
	return nil
}

// CleanupExpired pops every due deadline and removes the items that are
// confirmed expired.
func (s *ttlStrategy[V]) CleanupExpired() []string {
	now := s.t.Now()
	var removed []string
	for s.h.Len() > 0 && s.h[0].expiry <= now {
		e := heap.Pop(&s.h).(entry)
		if seq, ok := s.live[e.key]; !ok || seq != e.seq {
			continue
		}
		it, _ := s.t.Lookup(e.key)
		if !it.Expired(now) {
			// Deadline reached but expiry is strict (now - created > ttl);
			// keep the record for the next sweep.
			heap.Push(&s.h, e)
			break
		}
		s.drop(e.key, policy.EvictTTL)
		removed = append(removed, e.key)
	}
	return removed
}

func (s *ttlStrategy[V]) Len() int         { return s.t.Len() }
func (s *ttlStrategy[V]) SizeBytes() int64 { return s.t.Bytes() }
func (s *ttlStrategy[V]) Keys() []string   { return s.t.Keys() }

// Clear drops every item and record.
func (s *ttlStrategy[V]) Clear() {
	s.t.Reset()
	s.h = nil
	s.live = make(map[string]uint64)
}

func (s *ttlStrategy[V]) push(key string, expiry int64) {
	s.seq++
	s.live[key] = s.seq
	heap.Push(&s.h, entry{expiry: expiry, seq: s.seq, key: key})
	if s.h.Len() > compactFactor*len(s.live)+64 {
		s.compact()
	}
}

// compact rebuilds the heap from live items only.
func (s *ttlStrategy[V]) compact() {
	h := make(expiryHeap, 0, len(s.live))
	for key, seq := range s.live {
		it, ok := s.t.Lookup(key)
		if !ok {
			continue
		}
		h = append(h, entry{expiry: it.Deadline(), seq: seq, key: key})
	}
	heap.Init(&h)
	s.h = h
}

func (s *ttlStrategy[V]) drop(key string, reason policy.EvictReason) {
	it, ok := s.t.Delete(key)
	if !ok {
		return
	}
	delete(s.live, key)
	s.t.Notify(it, reason)
}
