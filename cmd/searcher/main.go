package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/meta"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	if cfg.Index.DataDir == "" {
		return errors.New("the search service needs index.dataDir to follow the indexer")
	}
	cfg.Index.ReadOnly = true
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := schema.LoadFile(cfg.Index.SchemaFile)
	if err != nil {
		return err
	}
	strategy, err := query.ParseStrategy(cfg.Search.Strategy)
	if err != nil {
		return err
	}
	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	store, closeStore, err := meta.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	engine, err := indexer.NewEngine(ctx, cfg.Index, s, indexer.WithMetaStore(store), indexer.WithMetrics(m))
	if err != nil {
		return err
	}
	defer engine.Close()
	engine.StartReloadLoop(ctx, cfg.Search.ReloadInterval)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap := engine.Searcher()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d segments, %d docs", snap.Generation(), snap.SegmentCount(), snap.NumDocs()),
		}
	})
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checker.Register("postgres", health.Ping(pinger.Ping, false))
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	exec := executor.New(engine, m)
	h := handler.New(exec, queryCache, checker, cfg.Search.DefaultLimit, cfg.Search.MaxResults,
		parser.WithStrategy(strategy),
		parser.WithSkipIndex(cfg.Search.SkipIndex),
	)

	var chain http.Handler = h.Mux()
	chain = middleware.Metrics(m, handler.Routes...)(chain)
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.RateLimit(middleware.NewRateLimiter(cfg.Search.RateLimit, cfg.Search.RateBurst))(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening",
		"addr", server.Addr,
		"index", cfg.Index.Name,
		"generation", engine.Searcher().Generation(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
