// Package lru implements the LRU eviction strategy.
package lru

import (
	"container/list"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// lru is a classic "move-to-back" Least-Recently-Used strategy.
// order holds keys oldest-first; pos indexes each key's element.
type lru[V any] struct {
	t     *policy.Table[V]
	order *list.List
	pos   map[string]*list.Element
}

type lruPolicy[V any] struct{}

// New returns a Policy factory that constructs LRU strategy instances.
func New[V any]() policy.Policy[V] { return lruPolicy[V]{} }

// Name implements policy.Policy.
func (lruPolicy[V]) Name() string { return "lru" }

// New implements policy.Policy.
func (lruPolicy[V]) New(cfg policy.Config[V]) policy.Strategy[V] {
	return &lru[V]{
		t:     policy.NewTable(cfg),
		order: list.New(),
		pos:   make(map[string]*list.Element),
	}
}

// Get returns a live value and marks it most recently used.
func (s *lru[V]) Get(key string) (V, bool) {
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
	s.order.MoveToBack(s.pos[key])
	return it.Value, true
}

// Peek returns a copy of the live item without promoting it.
func (s *lru[V]) Peek(key string) (policy.Item[V], bool) {
	it, ok := s.t.Lookup(key)
	if !ok || it.Expired(s.t.Now()) {
		return policy.Item[V]{}, false
	}
	return *it, true
}

// Put inserts or replaces key and marks it most recently used.
func (s *lru[V]) Put(key string, v V, ttl time.Duration) bool {
	it := s.t.Make(key, v, ttl)
	if s.t.Oversized(it) {
		s.Remove(key)
		return false
	}
	s.t.MakeRoom(key, it.Size, func() []string { return s.evict(policy.EvictCapacity) })
	s.t.Insert(it)
	if el, ok := s.pos[key]; ok {
		s.order.MoveToBack(el)
	} else {
		s.pos[key] = s.order.PushBack(key)
	}
	return true
}

// Remove deletes key if present.
func (s *lru[V]) Remove(key string) bool {
	if _, ok := s.t.Delete(key); !ok {
		return false
	}
	s.unlink(key)
	return true
}

// Evict removes the least recently used key.
func (s *lru[V]) Evict() []string { return s.evict(policy.EvictPolicy) }

func (s *lru[V]) evict(reason policy.EvictReason) []string {
	front := s.order.Front()
	if front == nil {
		return nil
	}
	key := front.Value.(string)
	s.drop(key, reason)
	return []string{key}
}

// CleanupExpired removes every expired item.
func (s *lru[V]) CleanupExpired() []string {
	keys := s.t.Expired(s.t.Now())
	for _, k := range keys {
		s.drop(k, policy.EvictTTL)
	}
	return keys
}

func (s *lru[V]) Len() int         { return s.t.Len() }
func (s *lru[V]) SizeBytes() int64 { return s.t.Bytes() }
func (s *lru[V]) Keys() []string   { return s.t.Keys() }

// Clear drops every item without reporting evictions.
func (s *lru[V]) Clear() {
	s.t.Reset()
	s.order.Init()
	s.pos = make(map[string]*list.Element)
}

// drop removes key from both structures and reports the eviction.
func (s *lru[V]) drop(key string, reason policy.EvictReason) {
	it, ok := s.t.Delete(key)
	if !ok {
		return
	}
	s.unlink(key)
	s.t.Notify(it, reason)
}

func (s *lru[V]) unlink(key string) {
	if el, ok := s.pos[key]; ok {
		s.order.Remove(el)
		delete(s.pos, key)
	}
}
