// Command bytesquery indexes three books with an INDEXED bytes field and
// resolves point and range queries over the byte-ordered term space,
// printing every hit as JSON.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
)

func main() {
	logger.Setup("warn", "text")
	dir, err := os.MkdirTemp("", "bytesquery")
	if err != nil {
		fmt.Fprintf(os.Stderr, "bytesquery: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)
	if err := run(context.Background(), os.Stdout, dir); err != nil {
		fmt.Fprintf(os.Stderr, "bytesquery: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, dir string) error {
	b := schema.NewBuilder()
	title := b.AddTextField("title", schema.TEXT|schema.Stored)
	body := b.AddTextField("body", schema.TEXT)
	raw := b.AddBytesField("bytes", schema.Indexed)
	s := b.MustBuild()

	engine, err := indexer.NewEngine(ctx, config.IndexConfig{Name: "books", DataDir: dir, Compression: "zstd"}, s)
	if err != nil {
		return err
	}
	defer engine.Close()

	values := [][]byte{
		[]byte("Some bytes here 0"),
		[]byte("Some bytes here 1"),
		[]byte("Some bytes here 2"),
	}
	var oldMan schema.Document
	oldMan.AddText(title, "The Old Man and the Sea")
	oldMan.AddText(body, "He was an old man who fished alone in a skiff in the Gulf Stream and he had gone "+
		"eighty-four days now without taking a fish.")
	oldMan.AddBytes(raw, values[0])

	var mice schema.Document
	mice.AddText(title, "Of Mice and Men")
	mice.AddText(body, "A few miles south of Soledad, the Salinas River drops in close to the hillside "+
		"bank and runs deep and green.")
	mice.AddBytes(raw, values[1])

	// Repeating a field makes it multivalued.
	var frankenstein schema.Document
	frankenstein.AddText(title, "Frankenstein")
	frankenstein.AddText(title, "The Modern Prometheus")
	frankenstein.AddText(body, "You will rejoice to hear that no disaster has accompanied the commencement of an "+
		"enterprise which you have regarded with such evil forebodings.")
	frankenstein.AddBytes(raw, values[2])

	for _, d := range []schema.Document{oldMan, mice, frankenstein} {
		if err := engine.AddDocument(d); err != nil {
			return err
		}
	}
	if err := engine.Commit(ctx); err != nil {
		return err
	}
	snap := engine.Searcher()

	for _, v := range values {
		q, err := query.NewTermQuery(s, term.FromBytes(raw, v))
		if err != nil {
			return err
		}
		if err := printHits(ctx, w, snap, q, 1); err != nil {
			return err
		}
	}

	rq, err := query.NewRangeQuery(s, raw,
		term.Included(term.FromBytes(raw, values[0])),
		term.Excluded(term.FromBytes(raw, values[2])),
		query.StrategyAuto)
	if err != nil {
		return err
	}
	return printHits(ctx, w, snap, rq, 2)
}

// printHits runs q with a top-10 collector, checks the hit count and prints
// each document's stored fields.
func printHits(ctx context.Context, w io.Writer, snap *searcher.Snapshot, q query.Query, want int) error {
	top, err := searcher.Search(ctx, snap, q, collector.NewTopK(10))
	if err != nil {
		return err
	}
	if len(top) != want {
		return fmt.Errorf("%s: got %d hits, want %d", q, len(top), want)
	}
	for _, hit := range top {
		doc, err := snap.Doc(hit.Address)
		if err != nil {
			return err
		}
		rendered, err := doc.ToJSON(snap.Schema())
		if err != nil {
			return err
		}
		fmt.Fprintln(w, rendered)
	}
	return nil
}
