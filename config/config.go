// Package config loads tiercache settings from YAML and the environment
// and assembles a manager.Manager from them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/internal/logging"
	"github.com/IvanBrykalov/tiercache/manager"
	"github.com/IvanBrykalov/tiercache/store/redisstore"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Backend names accepted in store.backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

var backends = []string{BackendNone, BackendMemory, BackendRedis, BackendNATS}

// Config is the file layout.
type Config struct {
	LogLevel         string                     `yaml:"log_level"`
	Memory           MemoryConfig               `yaml:"memory"`
	Store            StoreConfig                `yaml:"store"`
	BatchConcurrency int                        `yaml:"batch_concurrency"`
	CacheTypes       map[string]CacheTypeConfig `yaml:"cache_types"`
}

// MemoryConfig sizes the in-process tier.
type MemoryConfig struct {
	Policy          string        `yaml:"policy"`
	MaxEntries      int           `yaml:"max_entries"`
	MaxBytes        int64         `yaml:"max_bytes"`
	Shards          int           `yaml:"shards"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// Seed drives the random policy.
	Seed uint64 `yaml:"seed"`
}

// StoreConfig selects and configures the backing store.
type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Timeout time.Duration `yaml:"timeout"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
}

// RedisConfig addresses the Redis backend. REDIS_* variables override it.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NATSConfig addresses the JetStream KV backend. NATS_URL overrides URL.
type NATSConfig struct {
	URL    string `yaml:"url"`
	Bucket string `yaml:"bucket"`
}

// CacheTypeConfig overrides the policy of one cache type.
type CacheTypeConfig struct {
	TTL   time.Duration `yaml:"ttl"`
	Tiers []string      `yaml:"tiers"`
}

// Default returns the settings used for keys missing from the file.
func Default() Config {
	return Config{
		LogLevel: "info",
		Memory: MemoryConfig{
			Policy:          "lru",
			MaxEntries:      10000,
			MaxBytes:        100 << 20,
			Shards:          1,
			DefaultTTL:      time.Hour,
			CleanupInterval: time.Minute,
		},
		Store: StoreConfig{
			Backend: BackendNone,
			Timeout: 5 * time.Second,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: redisstore.DefaultPrefix,
			},
			NATS: NATSConfig{
				URL:    "nats://localhost:4222",
				Bucket: "tiercache",
			},
		},
		BatchConcurrency: 16,
	}
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default(). Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings from the environment:
// REDIS_HOST, REDIS_PORT, REDIS_DB, REDIS_PASSWORD, NATS_URL and
// TIERCACHE_LOG_LEVEL. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	host, hasHost := lookup("REDIS_HOST")
	port, hasPort := lookup("REDIS_PORT")
	if hasHost || hasPort {
		curHost, curPort, err := net.SplitHostPort(c.Store.Redis.Addr)
		if err != nil {
			curHost, curPort = c.Store.Redis.Addr, "6379"
		}
		if !hasHost {
			host = curHost
		}
		if !hasPort {
			port = curPort
		}
		c.Store.Redis.Addr = net.JoinHostPort(host, port)
	}
	if v, ok := lookup("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REDIS_DB: %w", ErrInvalid, err)
		}
		c.Store.Redis.DB = db
	}
	if v, ok := lookup("REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := lookup("NATS_URL"); ok {
		c.Store.NATS.URL = v
	}
	if v, ok := lookup("TIERCACHE_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

// Validate reports every problem at once, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		bad("log_level: %v", err)
	}
	if _, err := cache.PolicyByName[any](c.Memory.Policy, c.Memory.DefaultTTL, c.Memory.Seed); err != nil {
		bad("memory.policy: %v", err)
	}
	if c.Memory.MaxEntries <= 0 {
		bad("memory.max_entries must be > 0, got %d", c.Memory.MaxEntries)
	}
	if c.Memory.MaxBytes < 0 {
		bad("memory.max_bytes must be >= 0, got %d", c.Memory.MaxBytes)
	}
	if c.Memory.DefaultTTL < 0 || c.Memory.CleanupInterval < 0 {
		bad("memory durations must be >= 0")
	}
	if !slices.Contains(backends, c.backend()) {
		bad("store.backend %q (want one of %s)", c.Store.Backend, strings.Join(backends, ", "))
	}
	if c.Store.Timeout < 0 {
		bad("store.timeout must be >= 0, got %v", c.Store.Timeout)
	}
	switch c.backend() {
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			bad("store.redis.addr is required")
		}
	case BackendNATS:
		if c.Store.NATS.URL == "" || c.Store.NATS.Bucket == "" {
			bad("store.nats.url and store.nats.bucket are required")
		}
	}
	if c.BatchConcurrency < 0 {
		bad("batch_concurrency must be >= 0, got %d", c.BatchConcurrency)
	}
	for name, ct := range c.CacheTypes {
		if name == "" || strings.Contains(name, ":") {
			bad("cache_types: name %q must be non-empty and contain no ':'", name)
		}
		if ct.TTL < 0 {
			bad("cache_types.%s.ttl must be >= 0", name)
		}
		if _, err := parseTiers(ct.Tiers); err != nil {
			bad("cache_types.%s.tiers: %v", name, err)
		}
	}
	return errors.Join(errs...)
}

// Policies returns the built-in policies overlaid with cache_types.
func (c *Config) Policies() (map[string]manager.Policy, error) {
	out := manager.DefaultPolicies()
	for name, ct := range c.CacheTypes {
		tiers, err := parseTiers(ct.Tiers)
		if err != nil {
			return nil, fmt.Errorf("%w: cache_types.%s: %w", ErrInvalid, name, err)
		}
		out[name] = manager.Policy{TTL: ct.TTL, Tiers: tiers}
	}
	return out, nil
}

func (c *Config) backend() string {
	b := strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if b == "" {
		return BackendNone
	}
	return b
}

// parseTiers maps tier names; an empty list means both tiers.
func parseTiers(names []string) (manager.Tier, error) {
	if len(names) == 0 {
		return manager.TierBoth, nil
	}
	var t manager.Tier
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "memory":
			t |= manager.TierMemory
		case "store":
			t |= manager.TierStore
		default:
			return 0, fmt.Errorf("unknown tier %q (want memory or store)", n)
		}
	}
	return t, nil
}
