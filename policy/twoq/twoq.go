// Package twoq implements the 2Q eviction strategy.
package twoq

import (
	"container/list"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

// twoQ keeps two resident queues and one ghost queue:
//
//   - A1in: first-time keys in insertion order. A key read again while in
//     A1in moves to Am.
//   - Am: re-referenced keys in LRU order.
//   - A1out: keys (no values) recently evicted from A1in. A ghost key that
//     is inserted again skips A1in and goes straight to Am.
//
// Eviction takes from A1in while it is above its share of the capacity (or
// Am is empty), otherwise from the LRU end of Am. One-off scans therefore
// wash through A1in without displacing the hot set.
type twoQ[V any] struct {
	t *policy.Table[V]

	capIn    int
	capGhost int

	in    *list.List // front = oldest
	inPos map[string]*list.Element
	am    *list.List // front = least recently used
	amPos map[string]*list.Element

	ghost    *list.List // front = oldest
	ghostPos map[string]*list.Element
}

type twoQPolicy[V any] struct {
	inFrac, ghostFrac float64
}

// New returns a 2Q policy sized from each strategy's MaxEntries:
// A1in holds up to 25% of the entries and A1out remembers 50% as ghosts.
func New[V any]() policy.Policy[V] { return twoQPolicy[V]{inFrac: 0.25, ghostFrac: 0.5} }

// NewWithRatios is New with explicit A1in and A1out fractions of
// MaxEntries. Each queue holds at least one key.
func NewWithRatios[V any](inFrac, ghostFrac float64) policy.Policy[V] {
	return twoQPolicy[V]{inFrac: inFrac, ghostFrac: ghostFrac}
}

func (twoQPolicy[V]) Name() string { return "2q" }

func (p twoQPolicy[V]) New(cfg policy.Config[V]) policy.Strategy[V] {
	return &twoQ[V]{
		t:        policy.NewTable(cfg),
		capIn:    max(1, int(float64(cfg.MaxEntries)*p.inFrac)),
		capGhost: max(1, int(float64(cfg.MaxEntries)*p.ghostFrac)),
		in:       list.New(),
		inPos:    make(map[string]*list.Element),
		am:       list.New(),
		amPos:    make(map[string]*list.Element),
		ghost:    list.New(),
		ghostPos: make(map[string]*list.Element),
	}
}

func (s *twoQ[V]) Get(key string) (V, bool) {
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
	s.reference(key)
	return it.Value, true
}

func (s *twoQ[V]) Peek(key string) (policy.Item[V], bool) {
	it, ok := s.t.Lookup(key)
	if !ok || it.Expired(s.t.Now()) {
		return policy.Item[V]{}, false
	}
	return *it, true
}

// Put admits new keys into A1in (or Am for ghosts); replacing a resident
// key counts as a reference.
func (s *twoQ[V]) Put(key string, v V, ttl time.Duration) bool {
	it := s.t.Make(key, v, ttl)
	if s.t.Oversized(it) {
		s.Remove(key)
		return false
	}
	_, resident := s.t.Lookup(key)
	s.t.MakeRoom(key, it.Size, func() []string { return s.evict(policy.EvictCapacity) })
	s.t.Insert(it)

	switch {
	case resident && s.isLinked(key):
		s.reference(key)
	case s.forgetGhost(key):
		s.amPos[key] = s.am.PushBack(key)
	default:
		s.inPos[key] = s.in.PushBack(key)
	}
	return true
}

// Remove deletes key. Explicit removals do not leave a ghost.
func (s *twoQ[V]) Remove(key string) bool {
	if _, ok := s.t.Delete(key); !ok {
		return false
	}
	s.unlink(key)
	return true
}

func (s *twoQ[V]) Evict() []string { return s.evict(policy.EvictPolicy) }

func (s *twoQ[V]) evict(reason policy.EvictReason) []string {
	if s.in.Len() > 0 && (s.in.Len() > s.capIn || s.am.Len() == 0) {
		key := s.in.Front().Value.(string)
		s.drop(key, reason)
		s.remember(key)
		return []string{key}
	}
	if front := s.am.Front(); front != nil {
		key := front.Value.(string)
		s.drop(key, reason)
		return []string{key}
	}
	return nil
}

func (s *twoQ[V]) CleanupExpired() []string {
	keys := s.t.Expired(s.t.Now())
	for _, k := range keys {
		s.drop(k, policy.EvictTTL)
	}
	return keys
}

func (s *twoQ[V]) Len() int         { return s.t.Len() }
func (s *twoQ[V]) SizeBytes() int64 { return s.t.Bytes() }
func (s *twoQ[V]) Keys() []string   { return s.t.Keys() }

// Clear drops every item and every ghost.
func (s *twoQ[V]) Clear() {
	s.t.Reset()
	s.in.Init()
	s.am.Init()
	s.ghost.Init()
	s.inPos = make(map[string]*list.Element)
	s.amPos = make(map[string]*list.Element)
	s.ghostPos = make(map[string]*list.Element)
}

// reference promotes an A1in key to Am, or refreshes it within Am.
func (s *twoQ[V]) reference(key string) {
	if el, ok := s.inPos[key]; ok {
		s.in.Remove(el)
		delete(s.inPos, key)
		s.amPos[key] = s.am.PushBack(key)
		return
	}
	if el, ok := s.amPos[key]; ok {
		s.am.MoveToBack(el)
	}
}

func (s *twoQ[V]) isLinked(key string) bool {
	_, in := s.inPos[key]
	_, am := s.amPos[key]
	return in || am
}

func (s *twoQ[V]) drop(key string, reason policy.EvictReason) {
	it, ok := s.t.Delete(key)
	if !ok {
		return
	}
	s.unlink(key)
	s.t.Notify(it, reason)
}

func (s *twoQ[V]) unlink(key string) {
	if el, ok := s.inPos[key]; ok {
		s.in.Remove(el)
		delete(s.inPos, key)
	}
	if el, ok := s.amPos[key]; ok {
		s.am.Remove(el)
		delete(s.amPos, key)
	}
}

// remember records key in A1out, dropping the oldest ghosts past capGhost.
func (s *twoQ[V]) remember(key string) {
	if el, ok := s.ghostPos[key]; ok {
		s.ghost.MoveToBack(el)
		return
	}
	s.ghostPos[key] = s.ghost.PushBack(key)
	for s.ghost.Len() > s.capGhost {
		oldest := s.ghost.Front()
		delete(s.ghostPos, oldest.Value.(string))
		s.ghost.Remove(oldest)
	}
}

func (s *twoQ[V]) forgetGhost(key string) bool {
	el, ok := s.ghostPos[key]
	if !ok {
		return false
	}
	s.ghost.Remove(el)
	delete(s.ghostPos, key)
	return true
}
