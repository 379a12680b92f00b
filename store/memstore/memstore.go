// Package memstore is an in-process backing store for tests and local
// development. It follows the same contract as the networked stores,
// including per-key expiry, and can be told to fail every call.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/IvanBrykalov/tiercache/store"
)

// Options configures a Store.
type Options struct {
	// Now overrides the time source. nil => time.Now.
	Now func() time.Time
}

type entry struct {
	val []byte
	exp time.Time // zero => no expiry
}

// Store is a mutex-guarded map with lazy expiry. Values are copied on the
// way in and out so callers never share buffers with the store.
type Store struct {
	mu   sync.Mutex
	m    map[string]entry
	now  func() time.Time
	fail error
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Counter = (*Store)(nil)
)

// New returns an empty store.
func New(opt Options) *Store {
	now := opt.Now
	if now == nil {
		now = time.Now
	}
	return &Store{m: make(map[string]entry), now: now}
}

// Fail makes every subsequent call return err; nil restores normal
// operation. Useful to simulate an unreachable store.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return nil, false, err
	}
	e, ok := s.liveLocked(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return err
	}
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = s.now().Add(ttl)
	}
	s.m[key] = e
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return false, err
	}
	if _, ok := s.liveLocked(key); !ok {
		return false, nil
	}
	delete(s.m, key)
	return true, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return 0, false, err
	}
	e, ok := s.liveLocked(key)
	if !ok || e.exp.IsZero() {
		return 0, false, nil
	}
	return e.exp.Sub(s.now()), true, nil
}

func (s *Store) FlushPrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return 0, err
	}
	n := 0
	for k := range s.m {
		if strings.HasPrefix(k, prefix) {
			if _, ok := s.liveLocked(k); ok {
				n++
			}
			delete(s.m, k)
		}
	}
	return n, nil
}

// Count returns the number of live keys.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx); err != nil {
		return 0, err
	}
	n := 0
	for k := range s.m {
		if _, ok := s.liveLocked(k); ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) checkLocked(ctx context.Context) error {
	if s.fail != nil {
		return s.fail
	}
	return ctx.Err()
}

// liveLocked returns the entry for key, dropping it if expired.
func (s *Store) liveLocked(key string) (entry, bool) {
	e, ok := s.m[key]
	if !ok {
		return entry{}, false
	}
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		delete(s.m, key)
		return entry{}, false
	}
	return e, true
}
