// Package store defines the backing-store tier: a remote key/value service
// consulted on in-process misses and populated on writes.
//
// Implementations live in subpackages (memstore, redisstore, natskv). Keys
// are the manager's namespaced keys; values are already encoded.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCountUnsupported is returned by Count on stores that cannot
	// enumerate their keys.
	ErrCountUnsupported = errors.New("store: count not supported")
	// ErrUnavailable marks a store that failed a call for reasons outside
	// the caller's control (connection, timeout, server error).
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the backing-store contract. Every call may block on I/O and
// must honor ctx.
type Store interface {
	// Get returns the stored bytes. ok is false when key is absent.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	// Set stores val under key. ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// TTL returns the remaining lifetime. ok is false when key is absent
	// or has no expiry.
	TTL(ctx context.Context, key string) (remaining time.Duration, ok bool, err error)
	// FlushPrefix removes every key starting with prefix and returns how
	// many were removed. An empty prefix flushes everything the store owns.
	FlushPrefix(ctx context.Context, prefix string) (int, error)
}

// Counter is implemented by stores that can report how many keys they hold.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Count returns the number of keys in s, or ErrCountUnsupported.
func Count(ctx context.Context, s Store) (int, error) {
	c, ok := s.(Counter)
	if !ok {
		return 0, ErrCountUnsupported
	}
	return c.Count(ctx)
}
