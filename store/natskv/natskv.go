// Package natskv implements the backing-store tier on a NATS JetStream
// key/value bucket.
//
// Cache keys contain characters NATS subjects reject (':' and spaces among
// them), so every key is hex-encoded. Hex encoding preserves prefixes, which
// keeps FlushPrefix a plain prefix filter over encoded names. Per-key TTL is
// carried in a small envelope in front of the value, since buckets only
// support a bucket-wide max age; expired entries are purged on access.
package natskv

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/IvanBrykalov/tiercache/store"
)

// ErrCorrupt is returned for values not written by this package.
var ErrCorrupt = errors.New("natskv: corrupt envelope")

const headerLen = 8

// Options configures a Store.
type Options struct {
	// Now overrides the time source. nil => time.Now.
	Now func() time.Time
}

// Store is a store.Store over a JetStream KeyValue bucket.
type Store struct {
	kv  jetstream.KeyValue
	nc  *nats.Conn // set by Dial only
	now func() time.Time
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

// New wraps an existing bucket handle.
func New(kv jetstream.KeyValue, opt Options) *Store {
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	return &Store{kv: kv, now: now}
}

// Open returns the named bucket, creating it when it does not exist yet.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, opt Options) (*Store, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return New(kv, opt), nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("natskv: bucket %s: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "tiercache backing store",
		History:     1,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		// Lost a creation race with another process.
		kv, err = js.KeyValue(ctx, bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("natskv: create bucket %s: %w", bucket, err)
	}
	return New(kv, opt), nil
}

// Dial connects to url, enables JetStream and opens bucket. Close releases
// the connection.
func Dial(ctx context.Context, url, bucket string, opt Options) (*Store, error) {
	nc, err := nats.Connect(url, nats.Name("tiercache"))
	if err != nil {
		return nil, fmt.Errorf("natskv: connect %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskv: jetstream: %w", err)
	}
	s, err := Open(ctx, js, bucket, opt)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.nc = nc
	return s, nil
}

// Close drains the connection opened by Dial. It is a no-op for stores
// built with New.
func (s *Store) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, _, ok, err := s.load(ctx, encodeKey(key))
	return val, ok, err
}

// Set writes val with an absolute deadline of now+ttl (none when ttl <= 0).
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	if _, err := s.kv.Put(ctx, encodeKey(key), seal(val, exp)); err != nil {
		return wrap("put", err)
	}
	return nil
}

// Delete purges key, reporting whether a live value was present.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	k := encodeKey(key)
	_, _, ok, err := s.load(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	if err := s.kv.Purge(ctx, k); err != nil {
		return false, wrap("purge", err)
	}
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	_, exp, ok, err := s.load(ctx, encodeKey(key))
	if err != nil || !ok || exp.IsZero() {
		return 0, false, err
	}
	return exp.Sub(s.now()), true, nil
}

// FlushPrefix purges every key whose decoded name starts with prefix.
func (s *Store) FlushPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.keys(ctx, encodeKey(prefix))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if err := s.kv.Purge(ctx, k); err != nil {
			return n, wrap("purge", err)
		}
		n++
	}
	return n, nil
}

// Count returns the number of keys in the bucket, including entries that
// have expired but were not purged yet.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.keys(ctx, "")
	return len(keys), err
}

// load fetches and opens an envelope, purging it if expired.
func (s *Store) load(ctx context.Context, k string) ([]byte, time.Time, bool, error) {
	e, err := s.kv.Get(ctx, k)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, wrap("get", err)
	}
	val, exp, err := open(e.Value())
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("natskv: key %s: %w", decodeKey(k), err)
	}
	if !exp.IsZero() && !s.now().Before(exp) {
		_ = s.kv.Purge(ctx, k)
		return nil, time.Time{}, false, nil
	}
	return val, exp, true, nil
}

// keys lists encoded key names with the given encoded prefix.
func (s *Store) keys(ctx context.Context, encPrefix string) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, wrap("list", err)
	}
	defer func() { _ = lister.Stop() }()

	var out []string
	for {
		select {
		case <-ctx.Done():
			return out, wrap("list", ctx.Err())
		case k, ok := <-lister.Keys():
			if !ok {
				return out, nil
			}
			if strings.HasPrefix(k, encPrefix) {
				out = append(out, k)
			}
		}
	}
}

func encodeKey(key string) string { return hex.EncodeToString([]byte(key)) }

func decodeKey(k string) string {
	b, err := hex.DecodeString(k)
	if err != nil {
		return k
	}
	return string(b)
}

// seal prefixes val with its absolute expiry (UnixNano, big-endian; 0 = none).
func seal(val []byte, exp time.Time) []byte {
	out := make([]byte, headerLen+len(val))
	if !exp.IsZero() {
		binary.BigEndian.PutUint64(out, uint64(exp.UnixNano()))
	}
	copy(out[headerLen:], val)
	return out
}

func open(b []byte) ([]byte, time.Time, error) {
	if len(b) < headerLen {
		return nil, time.Time{}, ErrCorrupt
	}
	var exp time.Time
	if ns := binary.BigEndian.Uint64(b); ns != 0 {
		exp = time.Unix(0, int64(ns))
	}
	return b[headerLen:], exp, nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("natskv: %s: %w: %w", op, store.ErrUnavailable, err)
}
