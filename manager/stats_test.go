package manager

import (
	"testing"
	"time"
)

func TestLatencyWindow_Trim(t *testing.T) {
	t.Parallel()

	var w latencyWindow
	if got := w.mean(); got != 0 {
		t.Fatalf("empty mean = %v, want 0", got)
	}
	for i := 1; i <= latencyCap; i++ {
		w.add(time.Millisecond)
	}
	if got := w.len(); got != latencyCap {
		t.Fatalf("len = %d, want %d", got, latencyCap)
	}

	// Overflow keeps only the most recent samples.
	w.add(3 * time.Millisecond)
	if got := w.len(); got != latencyKeep {
		t.Fatalf("len after trim = %d, want %d", got, latencyKeep)
	}
	want := (time.Duration(latencyKeep-1)*time.Millisecond + 3*time.Millisecond) / latencyKeep
	if got := w.mean(); got != want {
		t.Fatalf("mean = %v, want %v", got, want)
	}
}

func TestTier_Has(t *testing.T) {
	t.Parallel()

	if !TierBoth.Has(TierMemory) || !TierBoth.Has(TierStore) {
		t.Fatal("TierBoth must include both tiers")
	}
	if TierMemory.Has(TierStore) {
		t.Fatal("memory tier must not include store")
	}
	if TierBoth.Has(0) {
		t.Fatal("empty set is never reported as present")
	}
}
