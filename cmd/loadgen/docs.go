package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/kafka"
)

var words = []string{
	"range", "segment", "column", "posting", "bitmap", "commit",
	"snapshot", "cursor", "block", "merge", "cache", "shard",
}

// syntheticDoc builds document i of the events schema. Timestamps equal
// the ordinal so range results are easy to predict.
func syntheticDoc(rng *rand.Rand, i int) map[string]any {
	title := words[rng.IntN(len(words))] + " " + words[rng.IntN(len(words))]
	key := []byte(fmt.Sprintf("key-%08d", rng.IntN(1_000_000)))
	return map[string]any{
		"timestamp": uint64(i),
		"title":     title,
		"key":       base64.StdEncoding.EncodeToString(key),
		"price":     float64(rng.IntN(100_000)) / 100,
		"delta":     rng.Int64N(2001) - 1000,
	}
}

func publishDocs(cfg config.KafkaConfig, count, batch int, seed uint64) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := kafka.NewProducer(cfg)
	defer p.Close()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := time.Now()
	records := make([]kafka.Record, 0, batch)
	for i := 0; i < count; i++ {
		records = append(records, kafka.Record{Key: strconv.Itoa(i), Value: syntheticDoc(rng, i)})
		if len(records) == batch || i == count-1 {
			if err := p.Publish(ctx, records...); err != nil {
				return err
			}
			records = records[:0]
		}
	}
	elapsed := time.Since(start)
	slog.Info("documents published",
		"count", count,
		"topic", cfg.DocumentTopic,
		"elapsed", elapsed.Round(time.Millisecond),
		"docs_per_sec", int(float64(count)/elapsed.Seconds()),
	)
	return nil
}
