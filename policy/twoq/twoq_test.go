package twoq

import (
	"fmt"
	"testing"

	"github.com/IvanBrykalov/tiercache/policy"
)

func newTwoQ(maxEntries int) *twoQ[int] {
	return New[int]().New(policy.Config[int]{
		MaxEntries: maxEntries,
		Sizer:      func(int) int64 { return 1 },
	}).(*twoQ[int])
}

// A first-time key is admitted into A1in.
func TestTwoQ_AddGoesToA1in(t *testing.T) {
	t.Parallel()

	s := newTwoQ(8)
	s.Put("a", 1, 0)

	if s.in.Len() != 1 || s.am.Len() != 0 {
		t.Fatalf("want a in A1in, got in=%d am=%d", s.in.Len(), s.am.Len())
	}
	if _, ok := s.inPos["a"]; !ok {
		t.Fatalf("a must be indexed in A1in")
	}
}

// A read while in A1in promotes the key to Am.
func TestTwoQ_GetPromotesToAm(t *testing.T) {
	t.Parallel()

	s := newTwoQ(8)
	s.Put("a", 1, 0)
	if _, ok := s.Get("a"); !ok {
		t.Fatal("miss")
	}
	if _, ok := s.amPos["a"]; !ok || s.in.Len() != 0 {
		t.Fatalf("a must move to Am")
	}
}

// Once A1in is over its share, eviction takes its oldest key and leaves a
// ghost; the hot key in Am survives.
func TestTwoQ_OverflowEvictsA1inAndRemembersGhost(t *testing.T) {
	t.Parallel()

	s := newTwoQ(4) // capIn = 1, capGhost = 2
	s.Put("hot", 0, 0)
	s.Get("hot")
	s.Put("a", 1, 0)
	s.Put("b", 2, 0)
	s.Put("c", 3, 0) // full: hot | a b c

	s.Put("d", 4, 0)
	if _, ok := s.Peek("a"); ok {
		t.Fatal("a (oldest in A1in) must be evicted")
	}
	if _, ok := s.Peek("hot"); !ok {
		t.Fatal("hot key in Am must survive a scan")
	}
	if _, ok := s.ghostPos["a"]; !ok {
		t.Fatal("evicted A1in key must become a ghost")
	}
}

// A ghost hit admits straight into Am.
func TestTwoQ_GhostReadmitsToAm(t *testing.T) {
	t.Parallel()

	s := newTwoQ(4)
	for i := 0; i < 5; i++ {
		s.Put(fmt.Sprint(i), i, 0)
	}
	if _, ok := s.ghostPos["0"]; !ok {
		t.Fatal("0 must be a ghost")
	}
	s.Put("0", 0, 0)
	if _, ok := s.amPos["0"]; !ok {
		t.Fatal("ghost key must be admitted to Am")
	}
	if _, ok := s.ghostPos["0"]; ok {
		t.Fatal("ghost must be consumed")
	}
}

// Ghost memory is bounded.
func TestTwoQ_GhostCapacity(t *testing.T) {
	t.Parallel()

	s := newTwoQ(4) // capGhost = 2
	for i := 0; i < 20; i++ {
		s.Put(fmt.Sprint(i), i, 0)
	}
	if s.ghost.Len() != 2 || len(s.ghostPos) != 2 {
		t.Fatalf("want 2 ghosts, got %d/%d", s.ghost.Len(), len(s.ghostPos))
	}
}

// Explicit Remove leaves no ghost.
func TestTwoQ_RemoveLeavesNoGhost(t *testing.T) {
	t.Parallel()

	s := newTwoQ(4)
	s.Put("a", 1, 0)
	s.Remove("a")
	if s.ghost.Len() != 0 || s.Len() != 0 {
		t.Fatalf("remove must not create ghosts (ghosts=%d len=%d)", s.ghost.Len(), s.Len())
	}
}

func TestTwoQ_Ratios(t *testing.T) {
	t.Parallel()

	s := NewWithRatios[int](0.5, 1).New(policy.Config[int]{MaxEntries: 10}).(*twoQ[int])
	if s.capIn != 5 || s.capGhost != 10 {
		t.Fatalf("want capIn=5 capGhost=10, got %d %d", s.capIn, s.capGhost)
	}
	s = NewWithRatios[int](0, 0).New(policy.Config[int]{MaxEntries: 10}).(*twoQ[int])
	if s.capIn != 1 || s.capGhost != 1 {
		t.Fatalf("queues must hold at least one key, got %d %d", s.capIn, s.capGhost)
	}
}
