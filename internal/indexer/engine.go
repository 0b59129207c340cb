// Package indexer owns the writable side of an index: the memory index that
// buffers new documents, the commit that turns it into a segment, and the
// atomically published snapshot searches run against.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/meta"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

type Option func(*Engine)

// WithMetaStore replaces the default meta.json store of a data dir index.
func WithMetaStore(store meta.Store) Option {
	return func(e *Engine) { e.store = store }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSegmentOptions sets how committed segments are opened.
func WithSegmentOptions(opts segment.Options) Option {
	return func(e *Engine) { e.segOpts = opts }
}

type Engine struct {
	cfg         config.IndexConfig
	schema      *schema.Schema
	store       meta.Store
	writer      *segment.Writer
	compression segment.Compression
	segOpts     segment.Options
	metrics     *metrics.Metrics
	logger      *slog.Logger

	// mu serialises AddDocument against the snapshot and reset of a commit.
	mu  sync.Mutex
	mem *index.MemoryIndex

	// commitMu makes Commit and Reload single-writer. names and readers
	// list the segments of the published snapshot, in order.
	commitMu sync.Mutex
	names    []string
	readers  []*segment.Reader

	current atomic.Pointer[searcher.Snapshot]
	closed  atomic.Bool
}

// NewEngine opens the index described by cfg. An empty DataDir keeps every
// segment in memory. Otherwise the segments listed by the meta store are
// opened in parallel and published as the first snapshot.
func NewEngine(ctx context.Context, cfg config.IndexConfig, s *schema.Schema, opts ...Option) (*Engine, error) {
	compression, err := segment.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	segOpts := segment.DefaultOptions()
	if cfg.ColumnBlockSize > 0 {
		segOpts.ColumnBlockSize = uint32(cfg.ColumnBlockSize)
	}
	e := &Engine{
		cfg:         cfg,
		schema:      s,
		compression: compression,
		segOpts:     segOpts,
		mem:         index.NewMemoryIndex(s),
		logger:      logger.WithComponent("indexer").With("index", cfg.Name),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.DataDir != "" {
		if !cfg.ReadOnly {
			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return nil, fmt.Errorf("creating index data directory: %w", err)
			}
		}
		e.writer = segment.NewWriter(cfg.DataDir, compression)
		if e.store == nil {
			e.store = meta.NewFileStore(cfg.DataDir)
		}
	}

	var generation uint64
	if e.store != nil {
		m, err := e.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading index meta: %w", err)
		}
		if m != nil {
			if m.Schema != nil && !m.Schema.Equal(s) {
				return nil, apperrors.SchemaMismatchf("index %q was created with a different schema", cfg.Name)
			}
			readers, err := e.openSegments(ctx, m.Segments)
			if err != nil {
				return nil, err
			}
			generation, e.names, e.readers = m.Generation, slices.Clone(m.Segments), readers
		}
	}
	e.publish(generation)
	e.logger.Info("index opened",
		"data_dir", cfg.DataDir,
		"generation", generation,
		"segments", len(e.readers),
		"docs", e.Searcher().NumDocs(),
		"read_only", cfg.ReadOnly,
	)
	return e, nil
}

// openSegments opens names concurrently and returns the readers in the
// same order. On failure every reader already opened is closed.
func (e *Engine) openSegments(ctx context.Context, names []string) ([]*segment.Reader, error) {
	readers := make([]*segment.Reader, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := segment.OpenFile(filepath.Join(e.cfg.DataDir, name), e.segOpts)
			if err != nil {
				return fmt.Errorf("opening segment %s: %w", name, err)
			}
			readers[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range readers {
			if r != nil {
				r.Close()
			}
		}
		return nil, err
	}
	return readers, nil
}

func (e *Engine) Schema() *schema.Schema { return e.schema }

// Searcher returns the most recently published snapshot. It stays valid
// and unchanged while later commits publish new ones.
func (e *Engine) Searcher() *searcher.Snapshot {
	return e.current.Load()
}

// AddDocument validates doc and buffers it. It becomes searchable at the
// next commit. Exceeding the memory budget commits immediately.
func (e *Engine) AddDocument(doc schema.Document) error {
	if e.closed.Load() {
		return apperrors.ErrIndexClosed
	}
	if e.cfg.ReadOnly {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "index is read-only")
	}
	if err := doc.Validate(e.schema); err != nil {
		return err
	}
	e.mu.Lock()
	_, err := e.mem.AddDocument(doc)
	size := e.mem.Size()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	if e.cfg.MemoryBudget > 0 && size >= e.cfg.MemoryBudget {
		e.logger.Info("memory budget reached, committing", "size", size, "budget", e.cfg.MemoryBudget)
		return e.Commit(context.Background())
	}
	return nil
}

// Pending is the number of buffered documents not yet committed.
func (e *Engine) Pending() uint32 {
	return e.mem.DocCount()
}

// Commit writes the buffered documents as a new segment, records it in the
// meta store and publishes a snapshot with the next generation. Nothing
// happens when no document is buffered. On failure the buffer is kept.
func (e *Engine) Commit(ctx context.Context) error {
	if e.closed.Load() {
		return apperrors.ErrIndexClosed
	}
	return e.commit(ctx)
}

func (e *Engine) commit(ctx context.Context) (err error) {
	if e.cfg.ReadOnly {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "index is read-only")
	}
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	data := e.mem.Snapshot()
	if data.Empty() {
		return nil
	}
	start := time.Now()
	defer func() {
		if e.metrics == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.CommitsTotal.WithLabelValues(status).Inc()
		e.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	generation := e.Searcher().Generation() + 1
	name, reader, err := e.writeSegment(data, generation)
	if err != nil {
		return fmt.Errorf("committing generation %d: %w", generation, err)
	}
	names := append(slices.Clone(e.names), name)
	if e.store != nil {
		m := &meta.Meta{
			Index:      e.cfg.Name,
			Generation: generation,
			Segments:   names,
			Schema:     e.schema,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := e.store.Save(ctx, m); err != nil {
			reader.Close()
			if e.writer != nil {
				os.Remove(filepath.Join(e.cfg.DataDir, name))
			}
			return fmt.Errorf("committing generation %d: %w", generation, err)
		}
	}

	e.names = names
	e.readers = append(slices.Clone(e.readers), reader)
	e.mem.Reset()
	e.publish(generation)
	e.logger.Info("commit complete",
		"generation", generation,
		"segment", name,
		"docs", data.DocCount,
		"terms", data.TermCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (e *Engine) writeSegment(data *index.SegmentData, generation uint64) (string, *segment.Reader, error) {
	if e.writer == nil {
		var buf bytes.Buffer
		if _, err := segment.Encode(&buf, data, e.compression); err != nil {
			return "", nil, err
		}
		name := fmt.Sprintf("mem_%d", generation)
		r, err := segment.OpenBytes(buf.Bytes(), name, e.segOpts)
		return name, r, err
	}
	name, err := e.writer.Write(data)
	if err != nil {
		return "", nil, err
	}
	r, err := segment.OpenFile(filepath.Join(e.cfg.DataDir, name), e.segOpts)
	if err != nil {
		os.Remove(filepath.Join(e.cfg.DataDir, name))
		return "", nil, err
	}
	return name, r, nil
}

// publish installs a snapshot of the current readers. Callers hold
// commitMu, or are the constructor.
func (e *Engine) publish(generation uint64) {
	snap := searcher.NewSnapshot(e.schema, generation, e.readers)
	e.current.Store(snap)
	if e.metrics != nil {
		e.metrics.SegmentsActive.Set(float64(snap.SegmentCount()))
		e.metrics.SnapshotDocs.Set(float64(snap.NumDocs()))
	}
}

// Reload picks up generations committed by another process through the
// shared meta store. Segments already open are reused.
func (e *Engine) Reload(ctx context.Context) error {
	if e.closed.Load() {
		return apperrors.ErrIndexClosed
	}
	if e.store == nil {
		return nil
	}
	m, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading index meta: %w", err)
	}
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	if m == nil || m.Generation <= e.Searcher().Generation() {
		return nil
	}
	if m.Schema != nil && !m.Schema.Equal(e.schema) {
		return apperrors.SchemaMismatchf("index %q schema changed at generation %d", e.cfg.Name, m.Generation)
	}

	open := make(map[string]*segment.Reader, len(e.readers))
	for i, name := range e.names {
		open[name] = e.readers[i]
	}
	var missing []string
	for _, name := range m.Segments {
		if _, ok := open[name]; !ok {
			missing = append(missing, name)
		}
	}
	fresh, err := e.openSegments(ctx, missing)
	if err != nil {
		return fmt.Errorf("reloading generation %d: %w", m.Generation, err)
	}
	for i, name := range missing {
		open[name] = fresh[i]
	}
	readers := make([]*segment.Reader, 0, len(m.Segments))
	for _, name := range m.Segments {
		readers = append(readers, open[name])
	}
	e.names, e.readers = slices.Clone(m.Segments), readers
	e.publish(m.Generation)
	e.logger.Info("index reloaded", "generation", m.Generation, "new_segments", len(missing))
	return nil
}

// StartCommitLoop commits every CommitInterval until ctx is cancelled,
// then commits once more.
func (e *Engine) StartCommitLoop(ctx context.Context) {
	e.every(ctx, e.cfg.CommitInterval, "commit", func(ctx context.Context) error {
		if e.Pending() == 0 {
			return nil
		}
		return e.Commit(ctx)
	}, true)
}

// StartReloadLoop calls Reload every interval until ctx is cancelled.
func (e *Engine) StartReloadLoop(ctx context.Context, interval time.Duration) {
	e.every(ctx, interval, "reload", e.Reload, false)
}

func (e *Engine) every(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error, final bool) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if final {
					if err := fn(context.Background()); err != nil && !apperrors.Is(err, apperrors.ErrIndexClosed) {
						e.logger.Error("final "+name+" failed", "error", err)
					}
				}
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil && ctx.Err() == nil && !apperrors.Is(err, apperrors.ErrIndexClosed) {
					e.logger.Error("periodic "+name+" failed", "error", err)
				}
			}
		}
	}()
}

// Close commits buffered documents of a writable index and closes every
// segment. Further calls fail with ErrIndexClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return apperrors.ErrIndexClosed
	}
	var commitErr error
	if !e.cfg.ReadOnly {
		commitErr = e.commit(context.Background())
	}
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	for _, r := range e.readers {
		if err := r.Close(); err != nil {
			e.logger.Error("closing segment", "segment", r.Name(), "error", err)
		}
	}
	e.logger.Info("index closed", "generation", e.Searcher().Generation())
	return commitErr
}
