package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/collector"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
)

// Routes served by the handler, for metrics labels.
var Routes = []string{
	"/api/v1/search",
	"/api/v1/doc",
	"/api/v1/cache/stats",
	"/api/v1/cache/invalidate",
	"/health",
	"/health/live",
	"/health/ready",
}

type Handler struct {
	executor     *executor.Executor
	cache        *cache.QueryCache
	health       *health.Checker
	defaultLimit int
	maxResults   int
	parseOpts    []parser.Option
	logger       *slog.Logger
}

// New builds the search API. queryCache and checker may be nil. parseOpts
// apply to every query string.
func New(exec *executor.Executor, queryCache *cache.QueryCache, checker *health.Checker, defaultLimit, maxResults int, parseOpts ...parser.Option) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		health:       checker,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		parseOpts:    parseOpts,
		logger:       logger.WithComponent("search-handler"),
	}
}

// Mux registers every route on a new ServeMux.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/doc", h.Doc)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health", h.Health)
	if h.health != nil {
		mux.HandleFunc("GET /health/live", h.health.LiveHandler())
		mux.HandleFunc("GET /health/ready", h.health.ReadyHandler())
	}
	return mux
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.maxResults)
	}
	mode, err := executor.ParseMode(r.URL.Query().Get("collector"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	snap := h.executor.Snapshot()
	plan, err := parser.Parse(snap.Schema(), q, h.parseOpts...)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	compute := func() (*executor.SearchResult, error) {
		return h.executor.ExecuteOn(ctx, snap, plan, limit, mode)
	}
	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		req := cache.Request{Plan: plan, Generation: snap.Generation(), Limit: limit, Mode: mode}
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", q, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("search completed",
		"query", q,
		"plan", result.Plan,
		"total_hits", result.TotalHits,
		"returned", len(result.Hits),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

// Doc returns the stored fields of one document of the current snapshot.
func (h *Handler) Doc(w http.ResponseWriter, r *http.Request) {
	seg, err1 := strconv.ParseUint(r.URL.Query().Get("segment"), 10, 32)
	doc, err2 := strconv.ParseUint(r.URL.Query().Get("doc"), 10, 32)
	if err1 != nil || err2 != nil {
		h.writeError(w, http.StatusBadRequest, "segment and doc must be unsigned integers")
		return
	}
	snap := h.executor.Snapshot()
	addr := collector.DocAddress{Segment: uint32(seg), Doc: uint32(doc)}
	stored, err := snap.Doc(addr)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	rendered, err := stored.ToJSON(snap.Schema())
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"address":    addr,
		"generation": snap.Generation(),
		"doc":        json.RawMessage(rendered),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.executor.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"generation": snap.Generation(),
		"segments":   snap.SegmentCount(),
		"docs":       snap.NumDocs(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err onto a status code. Internal errors are not
// echoed to the client.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		if errors.Is(err, apperrors.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, status, "search timed out")
			return
		}
		h.writeError(w, status, "search failed")
		return
	}
	h.writeError(w, status, err.Error())
}
