package util

import "testing"

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 64: 64, 65: 128}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Fatalf("NextPow2(%d)=%d want %d", in, got, want)
		}
	}
	if NextPow2(1<<63+1) != 1<<63 {
		t.Fatal("overflow must clamp to 1<<63")
	}
}

func TestShardIndex_InRange(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 3, 8, 10} {
		for _, k := range []string{"", "a", "dataset_info:squad", "query_results:42"} {
			i := ShardIndex(KeyHash(k), n)
			if i < 0 || i >= n {
				t.Fatalf("index %d out of [0,%d) for %q", i, n, k)
			}
		}
	}
}

func TestKeyHash_Stable(t *testing.T) {
	t.Parallel()

	if KeyHash("abc") != KeyHash("abc") {
		t.Fatal("hash must be deterministic")
	}
	if KeyHash("abc") == KeyHash("abd") {
		t.Fatal("unexpected collision")
	}
}

func TestSplitCeil(t *testing.T) {
	t.Parallel()

	if got := SplitCeil(10, 3); got != 4 {
		t.Fatalf("SplitCeil(10,3)=%d", got)
	}
	if got := SplitCeil(10, 0); got != 10 {
		t.Fatalf("SplitCeil(10,0)=%d", got)
	}
	if got := SplitCeil(0, 4); got != 0 {
		t.Fatalf("SplitCeil(0,4)=%d", got)
	}
}

func TestReasonableShardCount(t *testing.T) {
	t.Parallel()

	n := ReasonableShardCount()
	if n < 1 || n > 256 || !IsPowerOfTwo(uint64(n)) {
		t.Fatalf("unexpected shard count %d", n)
	}
}

func TestShardCount(t *testing.T) {
	t.Parallel()

	cases := []struct{ requested, maxEntries, want int }{
		{0, 100, 1},
		{8, 100, 8},
		{16, 4, 4},
		{3, 1, 1},
	}
	for _, c := range cases {
		if got := ShardCount(c.requested, c.maxEntries); got != c.want {
			t.Fatalf("ShardCount(%d,%d)=%d want %d", c.requested, c.maxEntries, got, c.want)
		}
	}
	if got := ShardCount(-1, 1<<20); got != ReasonableShardCount() {
		t.Fatalf("negative request must pick the default, got %d", got)
	}
}
