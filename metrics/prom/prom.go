// Package prom exports cache and manager events as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/manager"
)

// Adapter implements cache.Metrics and manager.Metrics.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	promotions  *prometheus.CounterVec
	writes      *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

var (
	_ cache.Metrics   = (*Adapter)(nil)
	_ manager.Metrics = (*Adapter)(nil)
)

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels)
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "memory_hits_total",
			Help:        "In-process tier hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "memory_misses_total",
			Help:        "In-process tier misses",
			ConstLabels: constLabels,
		}),
		evicts: counter("evictions_total", "In-process evictions by reason", "reason"),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "memory_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "memory_bytes",
			Help:        "Accounted size of resident entries",
			ConstLabels: constLabels,
		}),
		requests: counter("requests_total", "Manager lookups by cache type and result", "cache_type", "result"),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "request_duration_seconds",
			Help:        "Manager lookup latency",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"cache_type"}),
		promotions:  counter("promotions_total", "Backing-store hits copied into memory", "cache_type"),
		writes:      counter("writes_total", "Manager writes by cache type and outcome", "cache_type", "result"),
		storeErrors: counter("store_errors_total", "Failed backing-store calls", "op"),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost,
		a.requests, a.latency, a.promotions, a.writes, a.storeErrors)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for the number of entries and total cost.
func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

func (a *Adapter) Request(cacheType string, hit bool, d time.Duration) {
	a.requests.WithLabelValues(cacheType, result(hit, "hit", "miss")).Inc()
	a.latency.WithLabelValues(cacheType).Observe(d.Seconds())
}

func (a *Adapter) Promote(cacheType string) { a.promotions.WithLabelValues(cacheType).Inc() }

func (a *Adapter) StoreError(op string) { a.storeErrors.WithLabelValues(op).Inc() }

func (a *Adapter) Write(cacheType string, ok bool) {
	a.writes.WithLabelValues(cacheType, result(ok, "ok", "failed")).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
