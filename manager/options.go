package manager

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/store"
)

// Tier is a bit set of cache layers.
type Tier uint8

const (
	// TierMemory is the in-process tier.
	TierMemory Tier = 1 << iota
	// TierStore is the backing store.
	TierStore

	// TierBoth designates memory and backing store.
	TierBoth = TierMemory | TierStore
)

// Has reports whether t includes every tier in x.
func (t Tier) Has(x Tier) bool { return x != 0 && t&x == x }

func (t Tier) String() string {
	var parts []string
	if t.Has(TierMemory) {
		parts = append(parts, "memory")
	}
	if t.Has(TierStore) {
		parts = append(parts, "store")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Policy controls how one cache type is stored.
type Policy struct {
	// TTL applies when Set is called with ttl == 0. Zero means no expiry.
	TTL time.Duration
	// Tiers selects the layers written and consulted.
	Tiers Tier
}

// DefaultPolicy applies to cache types without a registered policy.
var DefaultPolicy = Policy{TTL: time.Hour, Tiers: TierBoth}

// DefaultPolicies returns the built-in policies for the dataset catalog
// cache types.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"dataset_info":    {TTL: time.Hour, Tiers: TierBoth},
		"dataset_list":    {TTL: 30 * time.Minute, Tiers: TierMemory},
		"dataset_samples": {TTL: 2 * time.Hour, Tiers: TierBoth},
		"query_results":   {TTL: 15 * time.Minute, Tiers: TierMemory},
		"search_results":  {TTL: 10 * time.Minute, Tiers: TierMemory},
	}
}

const (
	defaultStoreTimeout     = 5 * time.Second
	defaultBatchConcurrency = 16
)

// Options configures a Manager. Defaults applied in New():
//   - nil Policies      => DefaultPolicies()
//   - nil Codec         => JSONCodec
//   - nil Logger        => zap.NewNop()
//   - nil Metrics       => NoopMetrics
//   - StoreTimeout == 0 => 5s (negative disables the deadline)
//   - BatchConcurrency <= 0 => 16
type Options struct {
	// Memory configures the in-process tier. MaxEntries must be > 0.
	// Memory.OnEvict still fires; the manager counts evictions itself.
	Memory cache.Options[any]

	// Store is the backing store. nil => memory-only; types designating
	// only the store then reject writes.
	Store store.Store
	// CloseStore makes Close release Store when it implements io.Closer.
	CloseStore bool
	// StoreTimeout bounds every backing-store call.
	StoreTimeout time.Duration

	Policies map[string]Policy
	Codec    Codec
	Logger   *zap.Logger
	Metrics  Metrics

	// BatchConcurrency caps goroutines per GetMulti/SetMulti call.
	BatchConcurrency int
}
