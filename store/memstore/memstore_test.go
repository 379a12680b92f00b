package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	s := New(Options{Now: clk.now})
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	buf := []byte("payload")
	require.NoError(t, s.Set(ctx, "dataset_info:squad", buf, time.Minute))
	buf[0] = 'X'

	v, ok, err := s.Get(ctx, "dataset_info:squad")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(v), "stored value must not alias the caller's buffer")

	d, ok, err := s.TTL(ctx, "dataset_info:squad")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, d)

	require.NoError(t, s.Set(ctx, "forever", []byte("x"), 0))
	_, ok, err = s.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.False(t, ok, "keys without expiry report no ttl")

	clk.add(time.Minute)
	_, ok, _ = s.Get(ctx, "dataset_info:squad")
	assert.False(t, ok, "expired key must be absent")

	removed, err := s.Delete(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, "forever")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_FlushPrefixAndCount(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	ctx := context.Background()
	for _, k := range []string{"a:1", "a:2", "b:1"} {
		require.NoError(t, s.Set(ctx, k, []byte(k), 0))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.FlushPrefix(ctx, "a:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.FlushPrefix(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Fail(t *testing.T) {
	t.Parallel()

	s := New(Options{})
	ctx := context.Background()
	boom := errors.New("connection refused")
	s.Fail(boom)

	assert.ErrorIs(t, s.Set(ctx, "k", nil, 0), boom)
	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)
	_, err = s.FlushPrefix(ctx, "")
	assert.ErrorIs(t, err, boom)

	s.Fail(nil)
	assert.NoError(t, s.Set(ctx, "k", nil, 0))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = s.Get(cctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
