// Package redisstore implements the backing-store tier on Redis using
// go-redis v9. Every key is stored under a configurable prefix so several
// applications can share one database.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IvanBrykalov/tiercache/store"
)

// DefaultPrefix is applied when Options.Prefix is empty.
const DefaultPrefix = "tiercache:"

const (
	defaultScanCount = 500
	deleteBatch      = 500
)

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every key. Empty => DefaultPrefix.
	Prefix string
	// ScanCount is the COUNT hint for SCAN during flush/count.
	ScanCount int64
}

// Config describes how to reach a Redis server.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is a store.Store backed by a Redis client.
type Store struct {
	rdb       redis.UniversalClient
	prefix    string
	scanCount int64
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

// New wraps an existing client. The caller keeps ownership of rdb unless
// Close is called.
func New(rdb redis.UniversalClient, opt Options) *Store {
	if opt.Prefix == "" {
		opt.Prefix = DefaultPrefix
	}
	if opt.ScanCount <= 0 {
		opt.ScanCount = defaultScanCount
	}
	return &Store{rdb: rdb, prefix: opt.Prefix, scanCount: opt.ScanCount}
}

// Dial connects to cfg and verifies the connection with PING.
func Dial(ctx context.Context, cfg Config, opt Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	return New(rdb, opt), nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.rdb.Ping(ctx).Err())
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return b, true, nil
}

// Set stores val with SET ... EX when ttl > 0, plain SET otherwise.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return wrap("set", s.rdb.Set(ctx, s.prefix+key, val, ttl).Err())
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, wrap("del", err)
	}
	return n > 0, nil
}

// TTL maps Redis' -2 (missing) and -1 (no expiry) replies to ok=false.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.TTL(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, false, wrap("ttl", err)
	}
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

// FlushPrefix collects matching keys with SCAN, then deletes them in
// batches. Deletion starts only after the scan has finished.
func (s *Store) FlushPrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.match(prefix), s.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, wrap("scan", err)
	}

	removed := 0
	for len(keys) > 0 {
		n := min(len(keys), deleteBatch)
		got, err := s.rdb.Del(ctx, keys[:n]...).Result()
		if err != nil {
			return removed, wrap("del", err)
		}
		removed += int(got)
		keys = keys[n:]
	}
	return removed, nil
}

// Count returns the number of keys under the store prefix.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.match(""), s.scanCount).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, wrap("scan", err)
	}
	return n, nil
}

func (s *Store) match(prefix string) string {
	return escapeGlob(s.prefix+prefix) + "*"
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// wrap marks transport and server failures as store.ErrUnavailable.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("redisstore: %s: %w: %w", op, store.ErrUnavailable, err)
}
