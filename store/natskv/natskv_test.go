package natskv

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/tiercache/store"
)

// fakeKV implements the subset of jetstream.KeyValue the store uses.
type fakeKV struct {
	jetstream.KeyValue

	mu   sync.Mutex
	m    map[string][]byte
	rev  uint64
	fail error
}

func newFakeKV() *fakeKV { return &fakeKV{m: make(map[string][]byte)} }

type fakeEntry struct {
	key string
	val []byte
	rev uint64
}

func (e fakeEntry) Bucket() string                  { return "test" }
func (e fakeEntry) Key() string                     { return e.key }
func (e fakeEntry) Value() []byte                   { return e.val }
func (e fakeEntry) Revision() uint64                { return e.rev }
func (e fakeEntry) Created() time.Time              { return time.Time{} }
func (e fakeEntry) Delta() uint64                   { return 0 }
func (e fakeEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

type fakeLister struct{ ch chan string }

func (l fakeLister) Keys() <-chan string { return l.ch }
func (l fakeLister) Stop() error         { return nil }

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	v, ok := f.m[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return fakeEntry{key: key, val: v, rev: f.rev}, nil
}

func (f *fakeKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	f.rev++
	f.m[key] = append([]byte(nil), value...)
	return f.rev, nil
}

func (f *fakeKV) Purge(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	delete(f.m, key)
	return nil
}

func (f *fakeKV) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	ch := make(chan string, len(f.m))
	for k := range f.m {
		ch <- k
	}
	close(ch)
	return fakeLister{ch: ch}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestEnvelope(t *testing.T) {
	t.Parallel()

	exp := time.Unix(1_700_000_000, 42)
	val, got, err := open(seal([]byte("payload"), exp))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(val))
	assert.True(t, exp.Equal(got))

	val, got, err = open(seal(nil, time.Time{}))
	require.NoError(t, err)
	assert.Empty(t, val)
	assert.True(t, got.IsZero())

	_, _, err = open([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestKeyEncoding_PreservesPrefix(t *testing.T) {
	t.Parallel()

	k := encodeKey("dataset_info:squad v2")
	assert.Regexp(t, `^[0-9a-f]+$`, k)
	assert.True(t, len(k) > 0 && k[:len(encodeKey("dataset_info:"))] == encodeKey("dataset_info:"))
	assert.Equal(t, "dataset_info:squad v2", decodeKey(k))
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	kv := newFakeKV()
	s := New(kv, Options{Now: clk.now})
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "dataset_info:squad")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "dataset_info:squad", []byte("v1"), time.Minute))
	v, ok, err := s.Get(ctx, "dataset_info:squad")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", string(v))

	d, ok, err := s.TTL(ctx, "dataset_info:squad")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, d)

	require.NoError(t, s.Set(ctx, "dataset_list:all", []byte("v2"), 0))
	_, ok, err = s.TTL(ctx, "dataset_list:all")
	require.NoError(t, err)
	assert.False(t, ok)

	clk.t = clk.t.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, "dataset_info:squad")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must read as absent")
	assert.Len(t, kv.m, 1, "expired entry must be purged")

	removed, err := s.Delete(ctx, "dataset_list:all")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, "dataset_list:all")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_FlushPrefixAndCount(t *testing.T) {
	t.Parallel()

	s := New(newFakeKV(), Options{})
	ctx := context.Background()
	for _, k := range []string{"query_results:1", "query_results:2", "search_results:1"} {
		require.NoError(t, s.Set(ctx, k, []byte("v"), 0))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.FlushPrefix(ctx, "query_results:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := s.keys(ctx, "")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{encodeKey("search_results:1")}, keys)
}

func TestStore_Unavailable(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	kv.fail = nats.ErrConnectionClosed
	s := New(kv, Options{})
	ctx := context.Background()

	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "k", nil, 0), store.ErrUnavailable)
	_, err = s.FlushPrefix(ctx, "")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.NoError(t, s.Close(), "Close without Dial is a no-op")
}

func TestStore_CorruptValue(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	kv.m[encodeKey("bad")] = []byte{0x01}
	s := New(kv, Options{})

	_, _, err := s.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, store.ErrUnavailable)
}
