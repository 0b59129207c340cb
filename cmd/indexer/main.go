package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/meta"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/metrics"
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
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}

func run(cfg *config.Config) error {
	cfg.Index.ReadOnly = false
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := schema.LoadFile(cfg.Index.SchemaFile)
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
	var opts []indexer.Option
	opts = append(opts, indexer.WithMetrics(m))
	if cfg.Index.DataDir != "" {
		opts = append(opts, indexer.WithMetaStore(store))
	}
	engine, err := indexer.NewEngine(ctx, cfg.Index, s, opts...)
	if err != nil {
		return err
	}
	// Close commits whatever the consumer buffered after the last tick.
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Error("final commit failed", "error", err)
		}
	}()
	engine.StartCommitLoop(ctx)

	c := kafka.NewConsumer(cfg.Kafka, consumer.Handler(s, engine))
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.DocumentTopic,
		"group", cfg.Kafka.ConsumerGroup,
		"generation", engine.Searcher().Generation(),
	)
	return c.Run(ctx)
}
