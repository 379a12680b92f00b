// Command bench runs a synthetic workload against a tiercache Manager and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/config"
	"github.com/IvanBrykalov/tiercache/internal/logging"
	pmet "github.com/IvanBrykalov/tiercache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		cfgPath  = flag.String("config", "", "YAML config file (empty = defaults + flags)")
		capacity = flag.Int("cap", 100_000, "memory tier capacity (entries)")
		shards   = flag.Int("shards", 0, "number of shards (0=1, <0=auto)")
		policy   = flag.String("policy", "lru", "eviction policy: "+strings.Join(cache.PolicyNames, " | "))
		backend  = flag.String("store", "", "backing store: none | memory | redis | nats (empty = from config)")
		cacheTyp = flag.String("type", "query_results", "cache type used for every key")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		cfg.Memory.MaxEntries = *capacity
		cfg.Memory.MaxBytes = 0
		cfg.Memory.Shards = *shards
		cfg.Memory.Policy = *policy
		cfg.Memory.Seed = uint64(*seed)
		if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *backend != "" {
		cfg.Store.Backend = *backend
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", zap.String("addr", *pprofAddr))
			logger.Warn("pprof stopped", zap.Error(http.ListenAndServe(*pprofAddr, nil)))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "tiercache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("metrics: serving", zap.String("addr", *metricsAddr))
		logger.Warn("metrics server stopped", zap.Error(http.ListenAndServe(*metricsAddr, nil)))
	}()

	// ---- Build manager ----
	ctx := context.Background()
	m, err := cfg.Build(ctx, config.Deps{Logger: logger, Metrics: metrics, CacheMetrics: metrics})
	if err != nil {
		logger.Fatal("build cache", zap.Error(err))
	}
	defer func() { _ = m.Close() }()

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = cfg.Memory.MaxEntries / 2
	}
	for i := 0; i < pl; i++ {
		_, _ = m.Set(ctx, *cacheTyp, "k:"+strconv.Itoa(i), "v"+strconv.Itoa(i), 0)
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, total atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, *zipfS, *zipfV, keysMax)
			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for runCtx.Err() == nil {
				total.Add(1)
				if int(localR.Int31n(100)) < readPctVal {
					reads.Add(1)
					if _, ok := m.Get(runCtx, *cacheTyp, keyByZipf()); ok {
						hits.Add(1)
					}
				} else {
					writes.Add(1)
					_, _ = m.Set(runCtx, *cacheTyp, keyByZipf(), "v"+strconv.Itoa(localR.Int()), 0)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := total.Load()
	readsN := reads.Load()
	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hits.Load()) / float64(readsN) * 100
	}

	fmt.Printf("policy=%s cap=%d shards=%d store=%s workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Memory.Policy, cfg.Memory.MaxEntries, cfg.Memory.Shards, cfg.Store.Backend,
		workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  hit-rate=%.2f%%\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writes.Load(), hitRate)

	stats, err := json.MarshalIndent(m.Stats(ctx), "", "  ")
	if err != nil {
		logger.Fatal("encode stats", zap.Error(err))
	}
	fmt.Println(string(stats))
}
