// Package fifo implements the FIFO eviction strategy.
package fifo

import (
	"container/list"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// fifo evicts in first-insertion order. Reads never reorder, and an update
// of an existing key keeps its original position.
type fifo[V any] struct {
	t     *policy.Table[V]
	order *list.List
	pos   map[string]*list.Element
}

type fifoPolicy[V any] struct{}

// New returns a Policy factory that constructs FIFO strategy instances.
func New[V any]() policy.Policy[V] { return fifoPolicy[V]{} }

// Name implements policy.Policy.
func (fifoPolicy[V]) Name() string { return "fifo" }

// New implements policy.Policy.
func (fifoPolicy[V]) New(cfg policy.Config[V]) policy.Strategy[V] {
	return &fifo[V]{
		t:     policy.NewTable(cfg),
		order: list.New(),
		pos:   make(map[string]*list.Element),
	}
}

func (s *fifo[V]) Get(key string) (V, bool) {
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

func (s *fifo[V]) Peek(key string) (policy.Item[V], bool) {
	it, ok := s.t.Lookup(key)
	if !ok || it.Expired(s.t.Now()) {
		return policy.Item[V]{}, false
	}
	return *it, true
}

// Put appends new keys to the queue tail; existing keys stay in place.
func (s *fifo[V]) Put(key string, v V, ttl time.Duration) bool {
	it := s.t.Make(key, v, ttl)
	if s.t.Oversized(it) {
		s.Remove(key)
		return false
	}
	s.t.MakeRoom(key, it.Size, func() []string { return s.evict(policy.EvictCapacity) })
	s.t.Insert(it)
	if _, ok := s.pos[key]; !ok {
		s.pos[key] = s.order.PushBack(key)
	}
	return true
}

func (s *fifo[V]) Remove(key string) bool {
	if _, ok := s.t.Delete(key); !ok {
		return false
	}
	s.unlink(key)
	return true
}

// Evict removes the oldest inserted key.
func (s *fifo[V]) Evict() []string { return s.evict(policy.EvictPolicy) }

func (s *fifo[V]) evict(reason policy.EvictReason) []string {
	front := s.order.Front()
	if front == nil {
		return nil
	}
	key := front.Value.(string)
	s.drop(key, reason)
	return []string{key}
}

func (s *fifo[V]) CleanupExpired() []string {
	keys := s.t.Expired(s.t.Now())
	for _, k := range keys {
		s.drop(k, policy.EvictTTL)
	}
	return keys
}

func (s *fifo[V]) Len() int         { return s.t.Len() }
func (s *fifo[V]) SizeBytes() int64 { return s.t.Bytes() }
func (s *fifo[V]) Keys() []string   { return s.t.Keys() }

func (s *fifo[V]) Clear() {
	s.t.Reset()
	s.order.Init()
	s.pos = make(map[string]*list.Element)
}

func (s *fifo[V]) drop(key string, reason policy.EvictReason) {
	it, ok := s.t.Delete(key)
	if !ok {
		return
	}
	s.unlink(key)
	s.t.Notify(it, reason)
}

func (s *fifo[V]) unlink(key string) {
	if el, ok := s.pos[key]; ok {
		s.order.Remove(el)
		delete(s.pos, key)
	}
}
