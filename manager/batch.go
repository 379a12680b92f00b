package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// GetMulti fetches keys concurrently. Misses are omitted from the result.
func (m *Manager) GetMulti(ctx context.Context, cacheType string, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(m.opt.BatchConcurrency)
	for _, k := range keys {
		g.Go(func() error {
			if v, ok := m.Get(ctx, cacheType, k); ok {
				mu.Lock()
				out[k] = v
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SetMulti writes every entry concurrently and reports each key's outcome.
// A failing key does not stop the others. The only error is ErrNegativeTTL,
// checked before anything is written.
func (m *Manager) SetMulti(ctx context.Context, cacheType string, entries map[string]any, ttl time.Duration) (map[string]bool, error) {
	if ttl < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNegativeTTL, ttl)
	}
	out := make(map[string]bool, len(entries))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(m.opt.BatchConcurrency)
	for k, v := range entries {
		g.Go(func() error {
			ok, err := m.Set(ctx, cacheType, k, v, ttl)
			mu.Lock()
			out[k] = ok && err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
