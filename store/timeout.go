package store

import (
	"context"
	"fmt"
	"time"
)

// timeoutStore bounds every call of the wrapped store with a deadline.
type timeoutStore struct {
	next Store
	d    time.Duration
}

// WithTimeout wraps s so that each call runs under context.WithTimeout(d).
// d <= 0 returns s unchanged. A call that hits the deadline returns an
// error wrapping both ErrUnavailable and context.DeadlineExceeded.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 || s == nil {
		return s
	}
	return &timeoutStore{next: s, d: d}
}

// Unwrap returns the decorated store.
func (t *timeoutStore) Unwrap() Store { return t.next }

func (t *timeoutStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	v, ok, err := t.next.Get(ctx, key)
	return v, ok, t.wrap(ctx, "get", err)
}

func (t *timeoutStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.wrap(ctx, "set", t.next.Set(ctx, key, val, ttl))
}

func (t *timeoutStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	ok, err := t.next.Delete(ctx, key)
	return ok, t.wrap(ctx, "delete", err)
}

func (t *timeoutStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	d, ok, err := t.next.TTL(ctx, key)
	return d, ok, t.wrap(ctx, "ttl", err)
}

func (t *timeoutStore) FlushPrefix(ctx context.Context, prefix string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	n, err := t.next.FlushPrefix(ctx, prefix)
	return n, t.wrap(ctx, "flush", err)
}

// Count forwards to the wrapped store when it is a Counter.
func (t *timeoutStore) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	n, err := Count(ctx, t.next)
	return n, t.wrap(ctx, "count", err)
}

func (t *timeoutStore) wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s timed out after %s: %w", ErrUnavailable, op, t.d, context.DeadlineExceeded)
	}
	return err
}
