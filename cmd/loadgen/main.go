// Command loadgen drives a running deployment. "docs" publishes synthetic
// event documents to the indexer's Kafka topic; "queries" fires random range
// queries at the search service and reports latency percentiles.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "docs":
		fs := flag.NewFlagSet("docs", flag.ExitOnError)
		configPath := fs.String("config", "configs/development.yaml", "path to config file")
		count := fs.Int("count", 100000, "documents to publish")
		batch := fs.Int("batch", 500, "documents per Kafka write")
		seed := fs.Uint64("seed", 1, "random seed")
		fs.Parse(os.Args[2:])

		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		if err := publishDocs(cfg.Kafka, *count, *batch, *seed); err != nil {
			fmt.Fprintf(os.Stderr, "publishing documents: %v\n", err)
			os.Exit(1)
		}
	case "queries":
		fs := flag.NewFlagSet("queries", flag.ExitOnError)
		cfg := QueryConfig{}
		fs.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the search service")
		fs.IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
		fs.DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
		fs.Uint64Var(&cfg.MaxTimestamp, "max-timestamp", 100000, "upper end of the timestamp domain")
		fs.StringVar(&cfg.Collector, "collector", "count", "count or top")
		fs.Parse(os.Args[2:])

		stats := runQueries(cfg)
		if !printReport(os.Stdout, stats, cfg.Duration) {
			os.Exit(1)
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: loadgen docs|queries [flags]")
	os.Exit(2)
}
