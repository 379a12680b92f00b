package manager

import (
	"sync"
	"time"
)

const (
	latencyCap  = 1000
	latencyKeep = 500
)

// Stats is a snapshot of the manager's counters. Counters are monotonic
// for the manager's lifetime; Clear does not reset them.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Sets        uint64 `json:"sets"`
	Deletes     uint64 `json:"deletes"`
	StoreErrors uint64 `json:"store_errors"`

	// HitRate is Hits/(Hits+Misses), 0 before the first request.
	HitRate          float64       `json:"hit_rate"`
	AverageLatency   time.Duration `json:"-"`
	AverageLatencyMs float64       `json:"average_latency_ms"`

	MemoryEntries int   `json:"memory_entries"`
	MemoryBytes   int64 `json:"memory_bytes"`
	// StoreEntries is -1 when the backing store is absent, cannot count,
	// or failed to answer.
	StoreEntries int `json:"store_entries"`
}

// latencyWindow keeps the most recent request latencies.
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
}

func (w *latencyWindow) add(d time.Duration) {
	w.mu.Lock()
	w.samples = append(w.samples, d)
	if len(w.samples) > latencyCap {
		n := copy(w.samples, w.samples[len(w.samples)-latencyKeep:])
		w.samples = w.samples[:n]
	}
	w.mu.Unlock()
}

func (w *latencyWindow) mean() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range w.samples {
		sum += d
	}
	return sum / time.Duration(len(w.samples))
}

func (w *latencyWindow) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}
