// Package random implements uniform random eviction.
package random

import (
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// random keeps a dense key slice so a victim can be drawn in O(1);
// idx maps each key to its slot. Removal swaps the last key into the hole.
type random[V any] struct {
	t    *policy.Table[V]
	keys []string
	idx  map[string]int
	rng  *rand.Rand
}

type randomPolicy[V any] struct {
	seed uint64
	n    atomic.Uint64
}

// New returns a Policy factory. Each strategy instance gets its own PCG
// source derived from seed; a fixed seed makes victim selection
// reproducible.
func New[V any](seed uint64) policy.Policy[V] { return &randomPolicy[V]{seed: seed} }

// Name implements policy.Policy.
func (*randomPolicy[V]) Name() string { return "random" }

// New implements policy.Policy.
func (p *randomPolicy[V]) New(cfg policy.Config[V]) policy.Strategy[V] {
	src := rand.NewPCG(p.seed, 0x9e3779b97f4a7c15+p.n.Add(1))
	return &random[V]{
		t:   policy.NewTable(cfg),
		idx: make(map[string]int),
		rng: rand.New(src),
	}
}

func (s *random[V]) Get(key string) (V, bool) {
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

func (s *random[V]) Peek(key string) (policy.Item[V], bool) {
	it, ok := s.t.Lookup(key)
	if !ok || it.Expired(s.t.Now()) {
		return policy.Item[V]{}, false
	}
	return *it, true
}

func (s *random[V]) Put(key string, v V, ttl time.Duration) bool {
	it := s.t.Make(key, v, ttl)
	if s.t.Oversized(it) {
		s.Remove(key)
		return false
	}
	s.t.MakeRoom(key, it.Size, func() []string { return s.evict(policy.EvictCapacity) })
	s.t.Insert(it)
	if _, ok := s.idx[key]; !ok {
		s.idx[key] = len(s.keys)
		s.keys = append(s.keys, key)
	}
	return true
}

func (s *random[V]) Remove(key string) bool {
	if _, ok := s.t.Delete(key); !ok {
		return false
	}
	s.unlink(key)
	return true
}

// Evict removes one key chosen uniformly at random.
func (s *random[V]) Evict() []string { return s.evict(policy.EvictPolicy) }

func (s *random[V]) evict(reason policy.EvictReason) []string {
	if len(s.keys) == 0 {
		return nil
	}
	key := s.keys[s.rng.IntN(len(s.keys))]
	s.drop(key, reason)
	return []string{key}
}

func (s *random[V]) CleanupExpired() []string {
	keys := s.t.Expired(s.t.Now())
	for _, k := range keys {
		s.drop(k, policy.EvictTTL)
	}
	return keys
}

func (s *random[V]) Len() int         { return s.t.Len() }
func (s *random[V]) SizeBytes() int64 { return s.t.Bytes() }
func (s *random[V]) Keys() []string   { return s.t.Keys() }

func (s *random[V]) Clear() {
	s.t.Reset()
	s.keys = nil
	s.idx = make(map[string]int)
}

func (s *random[V]) drop(key string, reason policy.EvictReason) {
	it, ok := s.t.Delete(key)
	if !ok {
		return
	}
	s.unlink(key)
	s.t.Notify(it, reason)
}

func (s *random[V]) unlink(key string) {
	i, ok := s.idx[key]
	if !ok {
		return
	}
	last := len(s.keys) - 1
	if i != last {
		moved := s.keys[last]
		s.keys[i] = moved
		s.idx[moved] = i
	}
	s.keys[last] = ""
	s.keys = s.keys[:last]
	delete(s.idx, key)
}
