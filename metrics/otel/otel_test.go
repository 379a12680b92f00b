package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/manager"
)

func newAdapter(t *testing.T) (*Adapter, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	a, err := New(mp.Meter("tiercache-test"))
	require.NoError(t, err)
	return a, reader
}

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumWhere adds the points of an int64 sum whose attributes include kv.
func sumWhere(t *testing.T, m metricdata.Metrics, kv attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var n int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
			n += dp.Value
		}
	}
	return n
}

func TestAdapter_Cache(t *testing.T) {
	t.Parallel()

	a, reader := newAdapter(t)
	c, err := cache.New(cache.Options[int]{MaxEntries: 2, Metrics: a})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a
	_, _ = c.Get("c")
	_, _ = c.Get("a")

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumWhere(t, got["tiercache.memory.lookups"], attribute.String("result", "hit")))
	assert.Equal(t, int64(1), sumWhere(t, got["tiercache.memory.lookups"], attribute.String("result", "miss")))
	assert.Equal(t, int64(1), sumWhere(t, got["tiercache.memory.evictions"], attribute.String("reason", "capacity")))

	g, ok := got["tiercache.memory.entries"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(2), g.DataPoints[0].Value)
}

func TestAdapter_Manager(t *testing.T) {
	t.Parallel()

	a, reader := newAdapter(t)
	m, err := manager.New(manager.Options{
		Memory:  cache.Options[any]{MaxEntries: 8},
		Metrics: a,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	_, _ = m.Set(ctx, "query_results", "q", 1, time.Minute)
	_, _ = m.Get(ctx, "query_results", "q")
	_, _ = m.Get(ctx, "query_results", "missing")
	a.StoreError("get")

	got := collect(t, reader)
	req := got["tiercache.requests"]
	assert.Equal(t, int64(1), sumWhere(t, req, attribute.String("result", "hit")))
	assert.Equal(t, int64(1), sumWhere(t, req, attribute.String("result", "miss")))
	assert.Equal(t, int64(1), sumWhere(t, got["tiercache.writes"], attribute.String("result", "ok")))
	assert.Equal(t, int64(1), sumWhere(t, got["tiercache.store.errors"], attribute.String("op", "get")))

	h, ok := got["tiercache.request.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(2), h.DataPoints[0].Count)
}

// Not parallel: installs the global MeterProvider.
func TestNewGlobal(t *testing.T) {
	prev := otelapi.GetMeterProvider()
	t.Cleanup(func() { otelapi.SetMeterProvider(prev) })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	otelapi.SetMeterProvider(mp)

	a, err := NewGlobal()
	require.NoError(t, err)
	a.StoreError("get")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, ScopeName, rm.ScopeMetrics[0].Scope.Name)
	assert.Equal(t, int64(1), sumWhere(t, collect(t, reader)["tiercache.store.errors"], attribute.String("op", "get")))
}
