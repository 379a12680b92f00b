package manager

import "time"

// Metrics receives manager-level events. Implementations must be safe for
// concurrent use. See metrics/prom and metrics/otel.
type Metrics interface {
	// Request records one Get with its outcome and latency.
	Request(cacheType string, hit bool, d time.Duration)
	// Promote records a backing-store hit copied into memory.
	Promote(cacheType string)
	// StoreError records a failed backing-store call.
	StoreError(op string)
	// Write records the outcome of one Set.
	Write(cacheType string, ok bool)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Request(string, bool, time.Duration) {}
func (NoopMetrics) Promote(string)                      {}
func (NoopMetrics) StoreError(string)                   {}
func (NoopMetrics) Write(string, bool)                  {}
