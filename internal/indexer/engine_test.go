package indexer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/meta"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/term"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventSchema() *schema.Schema {
	b := schema.NewBuilder()
	b.AddU64Field("timestamp", schema.Indexed|schema.Fast|schema.Stored)
	b.AddTextField("title", schema.TEXT|schema.Stored)
	return b.MustBuild()
}

func indexConfig(dir string) config.IndexConfig {
	return config.IndexConfig{Name: "events", DataDir: dir, Compression: "lz4", ColumnBlockSize: 64}
}

func addEvents(t *testing.T, e *Engine, from, to uint64) {
	t.Helper()
	for ts := from; ts < to; ts++ {
		var d schema.Document
		d.AddU64(0, ts)
		d.AddText(1, fmt.Sprintf("event %d", ts))
		require.NoError(t, e.AddDocument(d))
	}
}

func count(t *testing.T, snap *searcher.Snapshot, lo, hi uint64) int {
	t.Helper()
	q, err := query.NewRangeQuery(snap.Schema(), 0,
		term.Included(term.FromU64(0, lo)), term.Included(term.FromU64(0, hi)), query.StrategyAuto)
	require.NoError(t, err)
	n, err := searcher.Search(context.Background(), snap, q, collector.NewCount())
	require.NoError(t, err)
	return n
}

func TestCommitPublishesNewSnapshot(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e, err := NewEngine(context.Background(), indexConfig(""), eventSchema(), WithMetrics(m))
	require.NoError(t, err)
	defer e.Close()

	before := e.Searcher()
	assert.Equal(t, uint64(0), before.Generation())

	addEvents(t, e, 0, 100)
	assert.Equal(t, uint32(100), e.Pending())
	assert.Equal(t, 0, count(t, e.Searcher(), 0, 1000), "uncommitted documents are invisible")

	require.NoError(t, e.Commit(context.Background()))
	first := e.Searcher()
	assert.Equal(t, uint64(1), first.Generation())
	assert.Equal(t, 100, count(t, first, 0, 1000))
	assert.Equal(t, uint32(0), e.Pending())

	addEvents(t, e, 100, 150)
	require.NoError(t, e.Commit(context.Background()))
	second := e.Searcher()
	assert.Equal(t, uint64(2), second.Generation())
	assert.Equal(t, 2, second.SegmentCount())
	assert.Equal(t, 51, count(t, second, 99, 149))

	// Older snapshots keep their view.
	assert.Equal(t, 0, count(t, before, 0, 1000))
	assert.Equal(t, 1, count(t, first, 99, 149))

	doc, err := second.Doc(collector.DocAddress{Segment: 1, Doc: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), doc.Get(0)[0].U64)

	assert.Equal(t, 150.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.SnapshotDocs))
}

func TestEmptyCommitKeepsGeneration(t *testing.T) {
	e, err := NewEngine(context.Background(), indexConfig(""), eventSchema())
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Commit(context.Background()))
	assert.Equal(t, uint64(0), e.Searcher().Generation())
}

func TestAddDocumentRejectsMismatch(t *testing.T) {
	e, err := NewEngine(context.Background(), indexConfig(""), eventSchema())
	require.NoError(t, err)
	defer e.Close()
	var d schema.Document
	d.AddText(0, "not a number")
	assert.ErrorIs(t, e.AddDocument(d), apperrors.ErrSchemaMismatch)
	assert.Equal(t, uint32(0), e.Pending())
}

func TestNonFiniteFloatDoesNotBlockCommits(t *testing.T) {
	b := schema.NewBuilder()
	price := b.AddF64Field("price", schema.Indexed|schema.Fast|schema.Stored)
	e, err := NewEngine(context.Background(), indexConfig(""), b.MustBuild())
	require.NoError(t, err)
	defer e.Close()

	var bad schema.Document
	bad.AddF64(price, math.NaN())
	assert.ErrorIs(t, e.AddDocument(bad), apperrors.ErrSchemaMismatch)
	assert.Equal(t, uint32(0), e.Pending())

	var good schema.Document
	good.AddF64(price, 9.5)
	require.NoError(t, e.AddDocument(good))
	require.NoError(t, e.Commit(context.Background()))
	assert.Equal(t, uint64(1), e.Searcher().NumDocs())
}

func TestMemoryBudgetTriggersCommit(t *testing.T) {
	cfg := indexConfig("")
	cfg.MemoryBudget = 1
	e, err := NewEngine(context.Background(), cfg, eventSchema())
	require.NoError(t, err)
	defer e.Close()
	addEvents(t, e, 0, 3)
	assert.Equal(t, uint64(3), e.Searcher().Generation())
}

func TestReopenFromDataDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	e, err := NewEngine(ctx, indexConfig(dir), eventSchema())
	require.NoError(t, err)
	addEvents(t, e, 0, 40)
	require.NoError(t, e.Commit(ctx))
	addEvents(t, e, 40, 60)
	// Close commits what is still buffered.
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.Close(), apperrors.ErrIndexClosed)
	assert.ErrorIs(t, e.AddDocument(schema.Document{}), apperrors.ErrIndexClosed)

	stored, err := meta.NewFileStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored.Segments, 2)

	// A stray file not listed in meta.json is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg_0.rseg"), []byte("junk"), 0644))

	reopened, err := NewEngine(ctx, indexConfig(dir), eventSchema())
	require.NoError(t, err)
	defer reopened.Close()
	snap := reopened.Searcher()
	assert.Equal(t, uint64(2), snap.Generation())
	assert.Equal(t, uint64(60), snap.NumDocs())
	assert.Equal(t, 60, count(t, snap, 0, 59))
}

func TestReopenWithDifferentSchema(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	e, err := NewEngine(ctx, indexConfig(dir), eventSchema())
	require.NoError(t, err)
	addEvents(t, e, 0, 5)
	require.NoError(t, e.Close())

	b := schema.NewBuilder()
	b.AddI64Field("timestamp", schema.Fast)
	_, err = NewEngine(ctx, indexConfig(dir), b.MustBuild())
	assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
}

func TestReadOnlyReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	writer, err := NewEngine(ctx, indexConfig(dir), eventSchema())
	require.NoError(t, err)
	defer writer.Close()

	cfg := indexConfig(dir)
	cfg.ReadOnly = true
	reader, err := NewEngine(ctx, cfg, eventSchema())
	require.NoError(t, err)
	defer reader.Close()
	assert.Equal(t, uint64(0), reader.Searcher().Generation())
	assert.ErrorIs(t, reader.AddDocument(schema.Document{}), apperrors.ErrInvalidInput)

	addEvents(t, writer, 0, 10)
	require.NoError(t, writer.Commit(ctx))
	require.NoError(t, reader.Reload(ctx))
	first := reader.Searcher()
	assert.Equal(t, uint64(1), first.Generation())
	assert.Equal(t, 10, count(t, first, 0, 100))

	addEvents(t, writer, 10, 25)
	require.NoError(t, writer.Commit(ctx))
	require.NoError(t, reader.Reload(ctx))
	second := reader.Searcher()
	assert.Equal(t, 25, count(t, second, 0, 100))
	seg, _ := first.Segment(0)
	reused, _ := second.Segment(0)
	assert.Same(t, seg, reused)

	require.NoError(t, reader.Reload(ctx))
	assert.Same(t, second, reader.Searcher(), "an unchanged generation publishes nothing")
}

func TestCommitLoop(t *testing.T) {
	cfg := indexConfig("")
	cfg.CommitInterval = 5 * time.Millisecond
	e, err := NewEngine(context.Background(), cfg, eventSchema())
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.StartCommitLoop(ctx)
	addEvents(t, e, 0, 3)
	assert.Eventually(t, func() bool { return e.Searcher().NumDocs() == 3 }, 2*time.Second, 10*time.Millisecond)
}
