package config

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/internal/logging"
	"github.com/IvanBrykalov/tiercache/manager"
	"github.com/IvanBrykalov/tiercache/store"
	"github.com/IvanBrykalov/tiercache/store/memstore"
	"github.com/IvanBrykalov/tiercache/store/natskv"
	"github.com/IvanBrykalov/tiercache/store/redisstore"
)

// Deps carries collaborators that do not come from the file.
type Deps struct {
	// Logger nil => a logger built from log_level.
	Logger       *zap.Logger
	Metrics      manager.Metrics
	CacheMetrics cache.Metrics
}

// OpenStore connects the configured backing store. It returns nil for the
// "none" backend.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.backend() {
	case BackendNone:
		return nil, nil
	case BackendMemory:
		return memstore.New(memstore.Options{}), nil
	case BackendRedis:
		r := c.Store.Redis
		return redisstore.Dial(ctx,
			redisstore.Config{Addr: r.Addr, Password: r.Password, DB: r.DB},
			redisstore.Options{Prefix: r.KeyPrefix})
	case BackendNATS:
		return natskv.Dial(ctx, c.Store.NATS.URL, c.Store.NATS.Bucket, natskv.Options{})
	default:
		return nil, fmt.Errorf("%w: store.backend %q", ErrInvalid, c.Store.Backend)
	}
}

// Build validates c, opens the backing store and returns a Manager that
// owns it; Manager.Close releases the connection. Only invalid settings
// fail: a store that cannot be reached is logged and left out.
func (c *Config) Build(ctx context.Context, deps Deps) (*manager.Manager, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		var err error
		if log, err = logging.New(c.LogLevel); err != nil {
			return nil, err
		}
	}
	pol, err := cache.PolicyByName[any](c.Memory.Policy, c.Memory.DefaultTTL, c.Memory.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	policies, err := c.Policies()
	if err != nil {
		return nil, err
	}
	backend := c.backend()
	st, err := c.OpenStore(ctx)
	switch {
	case errors.Is(err, ErrInvalid):
		return nil, err
	case err != nil:
		// An unreachable store never blocks startup; the manager runs
		// memory-only until it is rebuilt.
		log.Warn("backing store unavailable, running memory-only",
			zap.String("backend", backend), zap.Error(err))
		st, backend = nil, BackendNone
	}

	m, err := manager.New(manager.Options{
		Memory: cache.Options[any]{
			MaxEntries:      c.Memory.MaxEntries,
			MaxBytes:        c.Memory.MaxBytes,
			Shards:          c.Memory.Shards,
			Policy:          pol,
			DefaultTTL:      c.Memory.DefaultTTL,
			Metrics:         deps.CacheMetrics,
			CleanupInterval: c.Memory.CleanupInterval,
		},
		Store:            st,
		CloseStore:       true,
		StoreTimeout:     c.Store.Timeout,
		Policies:         policies,
		Logger:           log,
		Metrics:          deps.Metrics,
		BatchConcurrency: c.BatchConcurrency,
	})
	if err != nil {
		if cl, ok := st.(interface{ Close() error }); ok {
			_ = cl.Close()
		}
		return nil, err
	}
	log.Info("tiercache ready",
		zap.String("policy", pol.Name()),
		zap.String("backend", backend),
		zap.Int("max_entries", c.Memory.MaxEntries),
		zap.Int("cache_types", len(policies)))
	return m, nil
}
