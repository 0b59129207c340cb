// Command rangebench compares the inverted-index and columnar strategies
// for numeric range queries over an in-memory corpus whose timestamp field
// holds each document's ordinal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
)

type benchConfig struct {
	Docs       uint64
	NarrowPct  float64
	WidePct    float64
	Iterations int
	SkipIndex  bool
	BlockSize  int
}

func main() {
	var cfg benchConfig
	flag.Uint64Var(&cfg.Docs, "docs", 1_000_000, "documents to index")
	flag.Float64Var(&cfg.NarrowPct, "narrow", 0.10, "narrow range width as a fraction of the corpus")
	flag.Float64Var(&cfg.WidePct, "wide", 0.90, "wide range width as a fraction of the corpus")
	flag.IntVar(&cfg.Iterations, "iterations", 3, "runs averaged per measurement")
	flag.BoolVar(&cfg.SkipIndex, "skip-index", true, "use the block min/max index in columnar scans")
	flag.IntVar(&cfg.BlockSize, "block-size", 1024, "columnar skip index block size")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger.Setup(*logLevel, "text")
	if err := run(context.Background(), os.Stdout, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "rangebench: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, cfg benchConfig) error {
	b := schema.NewBuilder()
	ts := b.AddU64Field("timestamp", schema.Stored|schema.Fast|schema.Indexed)
	s := b.MustBuild()

	engine, err := indexer.NewEngine(ctx, config.IndexConfig{
		Name:            "rangebench",
		Compression:     "lz4",
		ColumnBlockSize: cfg.BlockSize,
	}, s)
	if err != nil {
		return err
	}
	defer engine.Close()

	start := time.Now()
	for i := uint64(0); i < cfg.Docs; i++ {
		var d schema.Document
		d.AddU64(ts, i)
		if err := engine.AddDocument(d); err != nil {
			return err
		}
	}
	if err := engine.Commit(ctx); err != nil {
		return err
	}
	indexing := time.Since(start)
	snap := engine.Searcher()

	narrowStart := cfg.Docs / 10
	narrowEnd := narrowStart + uint64(float64(cfg.Docs)*cfg.NarrowPct)
	wideStart := cfg.Docs / 10
	wideEnd := wideStart + uint64(float64(cfg.Docs)*cfg.WidePct)

	fmt.Fprintln(w, "=== Range Query Benchmark ===")
	fmt.Fprintf(w, "Documents:   %d (indexed in %s)\n", cfg.Docs, indexing.Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations:  %d\n", cfg.Iterations)
	fmt.Fprintf(w, "Narrow:      %d..%d\n", narrowStart, narrowEnd)
	fmt.Fprintf(w, "Wide:        %d..%d\n", wideStart, wideEnd)
	fmt.Fprintf(w, "Skip index:  %t\n\n", cfg.SkipIndex)

	for _, st := range []struct {
		title    string
		strategy query.Strategy
	}{
		{"[Inverted index range]", query.StrategyInverted},
		{"[Columnar scan]", query.StrategyColumnar},
	} {
		fmt.Fprintln(w, st.title)
		for _, r := range []struct {
			label  string
			lo, hi uint64
		}{
			{"narrow", narrowStart, narrowEnd},
			{"wide", wideStart, wideEnd},
		} {
			hits, avg, err := benchRange(ctx, snap, ts, r.lo, r.hi, st.strategy, cfg.Iterations, cfg.SkipIndex)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %-6s  hits %-9d avg %s\n", r.label, hits, avg)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// benchRange counts [lo, hi] with strategy and returns the last count and
// the mean latency over iterations.
func benchRange(ctx context.Context, snap *searcher.Snapshot, field schema.Field, lo, hi uint64, strategy query.Strategy, iterations int, skipIndex bool) (int, time.Duration, error) {
	iterations = max(iterations, 1)
	var total time.Duration
	var hits int
	for i := 0; i < iterations; i++ {
		q, err := query.NewRangeQuery(snap.Schema(), field,
			term.Included(term.FromU64(field, lo)),
			term.Included(term.FromU64(field, hi)),
			strategy, query.WithSkipIndex(skipIndex))
		if err != nil {
			return 0, 0, err
		}
		start := time.Now()
		hits, err = searcher.Search(ctx, snap, q, collector.NewCount())
		total += time.Since(start)
		if err != nil {
			return 0, 0, err
		}
	}
	return hits, total / time.Duration(iterations), nil
}
