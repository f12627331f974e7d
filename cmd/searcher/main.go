package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("DI_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"index_backend", cfg.Index.Backend,
	)
	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}
	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		checker.Register("postgres", health.Ping(db.Ping, cfg.Index.Backend != "postgres"))
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	source, err := indexSource(ctx, cfg, db)
	if err != nil {
		return err
	}
	holder := loader.NewHolder()
	reloader := loader.NewReloader(holder, source, m)
	reloader.OnSwap(func(prev, next *loader.Snapshot) {
		from := ""
		if prev != nil {
			from = prev.Fingerprint
		}
		slog.Info("active index replaced",
			"from", from,
			"to", next.Fingerprint,
			"origin", next.Origin,
		)
	})
	if _, _, err := reloader.Reload(ctx, loader.TriggerStartup); err != nil {
		slog.Warn("no index loaded at startup, serving not-ready until one is", "error", err)
	}
	checker.Register("index", func(context.Context) health.ComponentHealth {
		snap := holder.Current()
		if snap == nil {
			msg := "no index loaded"
			if err := reloader.LastError(); err != nil {
				msg = err.Error()
			}
			return health.ComponentHealth{Status: health.StatusDown, Message: msg}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents from %s", snap.Stats.Documents, snap.Origin),
		}
	})

	var queryCache handler.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{})
			queryCache = cache.New(cache.Guard(redisClient, breaker), cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	aggregator := analytics.NewAggregator()
	var sink analytics.Sink
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchAnalytics)
		defer producer.Close()
		sink = producer

		// Every replica reloads on each build and counts every search, so
		// each one consumes under its own group.
		consumerCfg := cfg.Kafka
		consumerCfg.ConsumerGroup = kafka.InstanceGroup(cfg.Kafka.ConsumerGroup)
		slog.Info("kafka consumers enabled", "group", consumerCfg.ConsumerGroup)
		builds := kafka.NewConsumer(consumerCfg, cfg.Kafka.Topics.IndexBuilt, loader.HandleBuildEvents(reloader))
		events := kafka.NewConsumer(consumerCfg, cfg.Kafka.Topics.SearchAnalytics, analytics.HandleEvent(aggregator))
		g.Go(func() error { return builds.Run(gctx) })
		g.Go(func() error { return events.Run(gctx) })
	}
	collector := analytics.NewCollector(sink, aggregator, analytics.CollectorOptions{})
	g.Go(func() error {
		collector.Run(gctx)
		return nil
	})

	if db != nil {
		snapshots, err := snapshot.NewStore(ctx, db)
		if err != nil {
			return err
		}
		if prev, err := snapshots.Latest(ctx); err != nil {
			slog.Warn("reading last analytics snapshot failed", "error", err)
		} else if prev != nil {
			slog.Info("previous analytics snapshot",
				"total_searches", prev.TotalSearches,
				"zero_results", prev.ZeroResultCount,
				"since", prev.Since,
			)
		}
		// The final snapshot waits for the collector to drain its queue.
		snapCtx, stopSnapshots := context.WithCancel(context.WithoutCancel(ctx))
		g.Go(func() error {
			collector.Wait()
			stopSnapshots()
			return nil
		})
		g.Go(func() error {
			snapshots.Run(snapCtx, aggregator, snapshotInterval)
			return nil
		})
	}

	if cfg.Index.Watch && cfg.Index.Backend == "file" {
		watcher, err := loader.NewWatcher(cfg.Index.Path, cfg.Index.WatchDebounce, func(ctx context.Context) {
			reloader.Reload(ctx, loader.TriggerWatch)
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	exec := executor.New(executor.Options{PartialMatching: cfg.Search.PartialMatching})
	h := handler.New(holder, reloader, exec, queryCache, collector, m, handler.Options{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		g.Go(func() error {
			limiter.Run(gctx, time.Minute)
			return nil
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlerChain(mux, cfg.Server, m, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// handlerChain wraps mux in the service middleware. Metrics sits directly
// around mux because ServeMux records the matched pattern on the request it
// is given, and Timeout hands inner layers a copy.
func handlerChain(mux *http.ServeMux, cfg config.ServerConfig, m *metrics.Metrics, limiter *middleware.Limiter) http.Handler {
	var chain http.Handler = middleware.Metrics(m)(mux)
	chain = middleware.Timeout(cfg.WriteTimeout)(chain)
	chain = middleware.RequireToken(cfg.AdminToken)(chain)
	if limiter != nil {
		chain = middleware.RateLimit(limiter)(chain)
	}
	if len(cfg.CORSOrigins) > 0 {
		chain = middleware.CORS(cfg.CORSOrigins)(chain)
	}
	return middleware.RequestID(chain)
}

func indexSource(ctx context.Context, cfg *config.Config, db *postgres.Client) (loader.Source, error) {
	if cfg.Index.Backend != "postgres" {
		return loader.FileSource{Path: cfg.Index.Path}, nil
	}
	builds, err := store.New(ctx, db)
	if err != nil {
		return nil, err
	}
	return loader.StoreSource{Store: builds, Policy: resilience.DefaultPolicy()}, nil
}
