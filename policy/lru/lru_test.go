package lru

import (
	"testing"

	"github.com/IvanBrykalov/tiercache/policy"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64 { return f.t }

func newStrategy(maxEntries int) (policy.Strategy[int], *fakeClock) {
	clk := &fakeClock{t: 1}
	s := New[int]().New(policy.Config[int]{
		MaxEntries: maxEntries,
		Sizer:      func(int) int64 { return 1 },
		Clock:      clk,
	})
	return s, clk
}

// Reading A promotes it, so inserting D into a full A,B,C evicts B.
func TestLRU_ReadPromotes(t *testing.T) {
	t.Parallel()

	s, clk := newStrategy(3)
	for i, k := range []string{"A", "B", "C"} {
		clk.t++
		s.Put(k, i, 0)
	}
	clk.t++
	if _, ok := s.Get("A"); !ok {
		t.Fatal("A must be present")
	}
	clk.t++
	s.Put("D", 3, 0)

	if _, ok := s.Peek("B"); ok {
		t.Fatal("B must be evicted")
	}
	for _, k := range []string{"A", "C", "D"} {
		if _, ok := s.Peek(k); !ok {
			t.Fatalf("%s must survive", k)
		}
	}
}

// An update counts as a use.
func TestLRU_UpdatePromotes(t *testing.T) {
	t.Parallel()

	s, _ := newStrategy(2)
	s.Put("a", 1, 0)
	s.Put("b", 2, 0)
	s.Put("a", 10, 0)
	s.Put("c", 3, 0)

	if _, ok := s.Peek("b"); ok {
		t.Fatal("b must be evicted")
	}
	if it, ok := s.Peek("a"); !ok || it.Value != 10 {
		t.Fatalf("a want 10, got %v ok=%v", it.Value, ok)
	}
}

// Peek must not touch recency.
func TestLRU_PeekDoesNotPromote(t *testing.T) {
	t.Parallel()

	s, _ := newStrategy(2)
	s.Put("a", 1, 0)
	s.Put("b", 2, 0)
	s.Peek("a")

	if got := s.Evict(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("want a evicted, got %v", got)
	}
}

// Evict walks strictly from least to most recent.
func TestLRU_EvictOrder(t *testing.T) {
	t.Parallel()

	s, _ := newStrategy(4)
	for i, k := range []string{"w", "x", "y", "z"} {
		s.Put(k, i, 0)
	}
	s.Get("w")
	want := []string{"x", "y", "z", "w"}
	for _, k := range want {
		got := s.Evict()
		if len(got) != 1 || got[0] != k {
			t.Fatalf("want %s evicted, got %v", k, got)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("want empty, len=%d", s.Len())
	}
}
