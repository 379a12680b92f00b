// Package lfu implements the LFU eviction strategy.
package lfu

import (
	"container/heap"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// entry is a frequency-heap record. Records are never updated in place:
// every Get/Put pushes a fresh one and bumps the key's live sequence, so
// older records for the same key become stale.
type entry struct {
	hits    uint64
	touched int64
	seq     uint64
	key     string
}

// freqHeap orders by hits, then least recent touch, then insertion sequence.
type freqHeap []entry

func (h freqHeap) Len() int { return len(h) }
func (h freqHeap) Less(i, j int) bool {
	if h[i].hits != h[j].hits {
		return h[i].hits < h[j].hits
	}
	if h[i].touched != h[j].touched {
		return h[i].touched < h[j].touched
	}
	return h[i].seq < h[j].seq
}
func (h freqHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *freqHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *freqHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// compactFactor bounds stale records: once the heap holds more than
// compactFactor records per live key it is rebuilt from the live items.
const compactFactor = 4

// lfu evicts the least frequently used key, oldest touch first on ties.
//
// Lazy invalidation: the heap may hold stale records for keys that were
// touched again, replaced or removed. A record is trusted only when its
// seq equals live[key]; every other record is discarded on pop. Never read
// the heap without that check.
type lfu[V any] struct {
	t    *policy.Table[V]
	h    freqHeap
	live map[string]uint64
	seq  uint64
}

type lfuPolicy[V any] struct{}

// New returns a Policy factory that constructs LFU strategy instances.
func New[V any]() policy.Policy[V] { return lfuPolicy[V]{} }

// Name implements policy.Policy.
func (lfuPolicy[V]) Name() string { return "lfu" }

// New implements policy.Policy.
func (lfuPolicy[V]) New(cfg policy.Config[V]) policy.Strategy[V] {
	return &lfu[V]{
		t:    policy.NewTable(cfg),
		live: make(map[string]uint64),
	}
}

// Get returns a live value, counts the access and pushes a fresh record.
func (s *lfu[V]) Get(key string) (V, bool) {
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
	s.push(key, it.Hits, it.Accessed)
	return it.Value, true
}

// Peek returns a copy of the live item without counting an access.
func (s *lfu[V]) Peek(key string) (policy.Item[V], bool) {
	it, ok := s.t.Lookup(key)
	if !ok || it.Expired(s.t.Now()) {
		return policy.Item[V]{}, false
	}
	return *it, true
}

// Put inserts or replaces key with a zero access count.
func (s *lfu[V]) Put(key string, v V, ttl time.Duration) bool {
	it := s.t.Make(key, v, ttl)
	if s.t.Oversized(it) {
		s.Remove(key)
		return false
	}
	s.t.MakeRoom(key, it.Size, func() []string { return s.evict(policy.EvictCapacity) })
	s.t.Insert(it)
	s.push(key, it.Hits, it.Created)
	return true
}

// Remove deletes key; its heap records go stale.
func (s *lfu[V]) Remove(key string) bool {
	if _, ok := s.t.Delete(key); !ok {
		return false
	}
	delete(s.live, key)
	return true
}

// Evict removes the least frequently used live key.
func (s *lfu[V]) Evict() []string { return s.evict(policy.EvictPolicy) }

func (s *lfu[V]) evict(reason policy.EvictReason) []string {
	for s.h.Len() > 0 {
		e := heap.Pop(&s.h).(entry)
		if seq, ok := s.live[e.key]; !ok || seq != e.seq {
			continue // stale record
		}
		s.drop(e.key, reason)
		return []string{e.key}
	}
	return nil
}

// CleanupExpired removes every expired item.
func (s *lfu[V]) CleanupExpired() []string {
	keys := s.t.Expired(s.t.Now())
	for _, k := range keys {
		s.drop(k, policy.EvictTTL)
	}
	return keys
}

func (s *lfu[V]) Len() int         { return s.t.Len() }
func (s *lfu[V]) SizeBytes() int64 { return s.t.Bytes() }
func (s *lfu[V]) Keys() []string   { return s.t.Keys() }

// Clear drops every item and record.
func (s *lfu[V]) Clear() {
	s.t.Reset()
	s.h = nil
	s.live = make(map[string]uint64)
}

func (s *lfu[V]) push(key string, hits uint64, touched int64) {
	s.seq++
	s.live[key] = s.seq
	heap.Push(&s.h, entry{hits: hits, touched: touched, seq: s.seq, key: key})
	if s.h.Len() > compactFactor*len(s.live)+64 {
		s.compact()
	}
}

// compact rebuilds the heap from live items only. The newest record of a
// key always mirrors (Hits, Accessed) of its item, so ordering is unchanged.
func (s *lfu[V]) compact() {
	h := make(freqHeap, 0, len(s.live))
	for key, seq := range s.live {
		it, ok := s.t.Lookup(key)
		if !ok {
			continue
		}
		h = append(h, entry{hits: it.Hits, touched: it.Accessed, seq: seq, key: key})
	}
	heap.Init(&h)
	s.h = h
}

func (s *lfu[V]) drop(key string, reason policy.EvictReason) {
	it, ok := s.t.Delete(key)
	if !ok {
		return
	}
	delete(s.live, key)
	s.t.Notify(it, reason)
}
