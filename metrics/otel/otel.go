// Package otel records cache and manager events with OpenTelemetry
// instruments obtained from a metric.Meter.
package otel

import (
	"context"
	"fmt"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/manager"
)

// Adapter implements cache.Metrics and manager.Metrics.
type Adapter struct {
	lookups     metric.Int64Counter
	evictions   metric.Int64Counter
	entries     metric.Int64Gauge
	bytes       metric.Int64Gauge
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	promotions  metric.Int64Counter
	writes      metric.Int64Counter
	storeErrors metric.Int64Counter
}

var (
	_ cache.Metrics   = (*Adapter)(nil)
	_ manager.Metrics = (*Adapter)(nil)
)

// ScopeName is the instrumentation scope used by NewGlobal.
const ScopeName = "github.com/IvanBrykalov/tiercache"

// NewGlobal creates the instruments on the globally registered
// MeterProvider. Call it after the provider is installed.
func NewGlobal() (*Adapter, error) {
	return New(otelapi.GetMeterProvider().Meter(ScopeName))
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Adapter, error) {
	var (
		a   Adapter
		err error
	)
	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	}
	gauge := func(dst *metric.Int64Gauge, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	}

	counter(&a.lookups, "tiercache.memory.lookups", "In-process tier lookups", "{lookup}")
	counter(&a.evictions, "tiercache.memory.evictions", "In-process evictions", "{entry}")
	gauge(&a.entries, "tiercache.memory.entries", "Resident entries", "{entry}")
	gauge(&a.bytes, "tiercache.memory.size", "Accounted size of resident entries", "By")
	counter(&a.requests, "tiercache.requests", "Manager lookups", "{request}")
	counter(&a.promotions, "tiercache.promotions", "Backing-store hits copied into memory", "{entry}")
	counter(&a.writes, "tiercache.writes", "Manager writes", "{write}")
	counter(&a.storeErrors, "tiercache.store.errors", "Failed backing-store calls", "{error}")
	if err != nil {
		return nil, fmt.Errorf("otel: create instrument: %w", err)
	}
	a.duration, err = meter.Float64Histogram("tiercache.request.duration",
		metric.WithDescription("Manager lookup latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("otel: create instrument: %w", err)
	}
	return &a, nil
}

func (a *Adapter) Hit()  { a.lookups.Add(context.Background(), 1, withResult("hit")) }
func (a *Adapter) Miss() { a.lookups.Add(context.Background(), 1, withResult("miss")) }

func (a *Adapter) Evict(r cache.EvictReason) {
	a.evictions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", r.String())))
}

func (a *Adapter) Size(entries int, bytes int64) {
	ctx := context.Background()
	a.entries.Record(ctx, int64(entries))
	a.bytes.Record(ctx, bytes)
}

func (a *Adapter) Request(cacheType string, hit bool, d time.Duration) {
	ctx := context.Background()
	res := "miss"
	if hit {
		res = "hit"
	}
	a.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache_type", cacheType), attribute.String("result", res)))
	a.duration.Record(ctx, float64(d)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("cache_type", cacheType)))
}

func (a *Adapter) Promote(cacheType string) {
	a.promotions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("cache_type", cacheType)))
}

func (a *Adapter) StoreError(op string) {
	a.storeErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("op", op)))
}

func (a *Adapter) Write(cacheType string, ok bool) {
	res := "failed"
	if ok {
		res = "ok"
	}
	a.writes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache_type", cacheType), attribute.String("result", res)))
}

func withResult(r string) metric.AddOption {
	return metric.WithAttributes(attribute.String("result", r))
}
