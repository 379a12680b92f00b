package cache

import (
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
func benchmarkMix(b *testing.B, policyName string, shards, readsPct int) {
	pol, err := PolicyByName[string](policyName, 0, 1)
	if err != nil {
		b.Fatal(err)
	}
	c := mustNew(b, Options[string]{
		MaxEntries: 100_000,
		Shards:     shards,
		Policy:     pol,
		Sizer:      func(v string) int64 { return int64(len(v)) },
	})

	for i := 0; i < 50_000; i++ {
		c.Set("k:"+strconv.Itoa(i), "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed atomic.Uint64
	keyMask := (1 << 17) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewPCG(seed.Add(1), 0))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.IntN(100) < readsPct {
				c.Get(k)
			} else {
				c.Set(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_LRU_90r10w(b *testing.B)         { benchmarkMix(b, "lru", 1, 90) }
func BenchmarkCache_LRU_50r50w(b *testing.B)         { benchmarkMix(b, "lru", 1, 50) }
func BenchmarkCache_LRU_Sharded_90r10w(b *testing.B) { benchmarkMix(b, "lru", -1, 90) }
func BenchmarkCache_LFU_90r10w(b *testing.B)         { benchmarkMix(b, "lfu", 1, 90) }
func BenchmarkCache_TTL_90r10w(b *testing.B)         { benchmarkMix(b, "ttl", 1, 90) }
func BenchmarkCache_FIFO_90r10w(b *testing.B)        { benchmarkMix(b, "fifo", 1, 90) }
func BenchmarkCache_Random_90r10w(b *testing.B)      { benchmarkMix(b, "random", 1, 90) }
func BenchmarkCache_2Q_90r10w(b *testing.B)          { benchmarkMix(b, "2q", 1, 90) }
