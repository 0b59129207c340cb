package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/query"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/metrics"
)

// Mode selects what a search returns.
type Mode string

const (
	ModeCount Mode = "count"
	ModeTop   Mode = "top"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeTop:
		return ModeTop, nil
	case ModeCount:
		return ModeCount, nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown collector %q", s)
	}
}

// SnapshotSource hands out the snapshot a search should run against.
type SnapshotSource interface {
	Searcher() *searcher.Snapshot
}

type Hit struct {
	Address collector.DocAddress `json:"address"`
	Score   float32              `json:"score"`
	Doc     json.RawMessage      `json:"doc,omitempty"`
}

type SearchResult struct {
	Query      string `json:"query"`
	Plan       string `json:"plan"`
	Generation uint64 `json:"generation"`
	TotalHits  int    `json:"total_hits"`
	Hits       []Hit  `json:"hits"`
}

type Executor struct {
	source  SnapshotSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds an executor. m may be nil.
func New(source SnapshotSource, m *metrics.Metrics) *Executor {
	return &Executor{
		source:  source,
		metrics: m,
		logger:  logger.WithComponent("query-executor"),
	}
}

// Snapshot is the snapshot the next search would see.
func (e *Executor) Snapshot() *searcher.Snapshot {
	return e.source.Searcher()
}

// Execute runs plan against the current snapshot. In ModeTop the first limit
// hits are returned with their stored fields; ModeCount returns only the
// total.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int, mode Mode) (*SearchResult, error) {
	return e.ExecuteOn(ctx, e.source.Searcher(), plan, limit, mode)
}

// ExecuteOn is Execute against a snapshot the caller already holds.
func (e *Executor) ExecuteOn(ctx context.Context, snap *searcher.Snapshot, plan *parser.QueryPlan, limit int, mode Mode) (*SearchResult, error) {
	start := time.Now()
	strategy := strategyLabel(plan.Query)
	result := &SearchResult{
		Query:      plan.RawQuery,
		Plan:       plan.Query.String(),
		Generation: snap.Generation(),
		Hits:       []Hit{},
	}

	var err error
	if mode == ModeCount {
		result.TotalHits, err = searcher.Search(ctx, snap, plan.Query, collector.NewCount())
	} else {
		var both collector.Pair[int, []collector.ScoredDoc]
		both, err = searcher.Search(ctx, snap, plan.Query,
			collector.Tee[int, []collector.ScoredDoc](collector.NewCount(), collector.NewTopK(limit)))
		if err == nil {
			result.TotalHits = both.First
			result.Hits, err = e.loadHits(snap, both.Second)
		}
	}
	e.observe(strategy, result.TotalHits, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", plan.Query, err)
	}

	log := e.logger
	if id := logger.RequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	log.Info("query executed",
		"query", plan.RawQuery,
		"strategy", strategy,
		"generation", result.Generation,
		"hits", result.TotalHits,
		"returned", len(result.Hits),
	)
	return result, nil
}

func (e *Executor) loadHits(snap *searcher.Snapshot, top []collector.ScoredDoc) ([]Hit, error) {
	hits := make([]Hit, 0, len(top))
	for _, sd := range top {
		doc, err := snap.Doc(sd.Address)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", sd.Address, err)
		}
		hit := Hit{Address: sd.Address, Score: sd.Score}
		if len(doc.FieldValues) > 0 {
			rendered, err := doc.ToJSON(snap.Schema())
			if err != nil {
				return nil, err
			}
			hit.Doc = json.RawMessage(rendered)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (e *Executor) observe(strategy string, hits int, took time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case hits == 0:
		outcome = "zero_result"
	}
	e.metrics.QueriesTotal.WithLabelValues(strategy, outcome).Inc()
	e.metrics.QueryLatency.WithLabelValues(strategy).Observe(took.Seconds())
	if err == nil {
		e.metrics.QueryHits.Observe(float64(hits))
	}
}

func strategyLabel(q query.Query) string {
	switch q.(type) {
	case *query.InvertedRangeQuery:
		return query.StrategyInverted.String()
	case *query.ColumnarRangeQuery:
		return query.StrategyColumnar.String()
	case *query.TermQuery:
		return "term"
	case *query.BooleanQuery:
		return "boolean"
	default:
		return "all"
	}
}
