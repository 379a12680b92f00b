package ttl

import (
	"testing"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

func newStrategy(maxEntries int, def time.Duration) (*ttlStrategy[string], *fakeClock) {
	clk := &fakeClock{t: 1}
	s := New[string](def).New(policy.Config[string]{
		MaxEntries: maxEntries,
		Sizer:      func(string) int64 { return 1 },
		Clock:      clk,
	})
	return s.(*ttlStrategy[string]), clk
}

// Under pressure the item closest to its deadline goes, even unexpired.
func TestTTL_EvictsNearestDeadline(t *testing.T) {
	t.Parallel()

	s, _ := newStrategy(3, time.Hour)
	s.Put("long", "v", 10*time.Minute)
	s.Put("short", "v", time.Minute)
	s.Put("mid", "v", 5*time.Minute)
	s.Put("new", "v", 30*time.Minute)

	if _, ok := s.Peek("short"); ok {
		t.Fatal("short must be evicted")
	}
	if s.Len() != 3 {
		t.Fatalf("want 3 resident, got %d", s.Len())
	}
}

// Evict takes every expired item at once when there are some.
func TestTTL_EvictPrefersExpired(t *testing.T) {
	t.Parallel()

	s, clk := newStrategy(8, time.Hour)
	s.Put("a", "v", time.Second)
	s.Put("b", "v", time.Second)
	s.Put("c", "v", time.Hour)
	clk.add(2 * time.Second)

	got := s.Evict()
	if len(got) != 2 {
		t.Fatalf("want both expired keys, got %v", got)
	}
	if _, ok := s.Peek("c"); !ok {
		t.Fatal("c must survive")
	}
}

// Untimed puts take the strategy default.
func TestTTL_DefaultApplied(t *testing.T) {
	t.Parallel()

	s, clk := newStrategy(4, time.Minute)
	s.Put("k", "v", 0)
	it, ok := s.Peek("k")
	if !ok || it.TTL != time.Minute {
		t.Fatalf("want default ttl 1m, got %v ok=%v", it.TTL, ok)
	}
	clk.add(time.Minute + time.Nanosecond)
	if _, ok := s.Get("k"); ok {
		t.Fatal("k must expire with the default ttl")
	}

	if New[string](0).(ttlPolicy[string]).defaultTTL != DefaultTTL {
		t.Fatal("non-positive default must select DefaultTTL")
	}
}

// Replacing a key invalidates its old deadline.
func TestTTL_ReplaceInvalidatesOldDeadline(t *testing.T) {
	t.Parallel()

	s, clk := newStrategy(4, time.Hour)
	s.Put("k", "old", time.Second)
	s.Put("k", "new", time.Hour)
	clk.add(2 * time.Second)

	if got := s.CleanupExpired(); len(got) != 0 {
		t.Fatalf("stale deadline swept %v", got)
	}
	if v, ok := s.Get("k"); !ok || v != "new" {
		t.Fatalf("want new, got %q ok=%v", v, ok)
	}
}

// Sweeps happen as a side effect of reads and writes.
func TestTTL_OpportunisticSweep(t *testing.T) {
	t.Parallel()

	s, clk := newStrategy(4, time.Hour)
	s.Put("a", "v", time.Second)
	s.Put("b", "v", time.Second)
	clk.add(2 * time.Second)
	s.Get("missing")

	if s.Len() != 0 {
		t.Fatalf("expired items still resident: %v", s.Keys())
	}
}

// Rewrites and removals of hot keys must not pile up dead heap records.
func TestTTL_HeapCompaction(t *testing.T) {
	t.Parallel()

	s, _ := newStrategy(8, time.Hour)
	for i := 0; i < 100_000; i++ {
		s.Put("k", "v", time.Hour)
	}
	for i := 0; i < 1_000; i++ {
		s.Put("r", "v", time.Hour)
		s.Remove("r")
	}
	if limit := compactFactor*len(s.live) + 64; s.h.Len() > limit {
		t.Fatalf("heap holds %d records, limit %d", s.h.Len(), limit)
	}
	if len(s.live) != 1 || s.Len() != 1 {
		t.Fatalf("live %d, resident %d", len(s.live), s.Len())
	}

	// Ordering survives a rebuild.
	s.Put("soon", "v", time.Minute)
	if got := s.Evict(); len(got) != 1 || got[0] != "soon" {
		t.Fatalf("want soon evicted first, got %v", got)
	}
}
