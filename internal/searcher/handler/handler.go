// Package handler serves the search HTTP API over the active index.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
)

// CacheHeader reports whether a search response was served from the cache.
const CacheHeader = "X-Cache"

type SearchExecutor interface {
	Execute(ctx context.Context, idx *index.Index, q *parser.Query, limit int) (*executor.SearchResult, error)
}

// QueryCache is satisfied by *cache.QueryCache.
type QueryCache interface {
	GetOrCompute(ctx context.Context, fingerprint string, q *parser.Query, limit int,
		compute cache.ComputeFunc) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (cache.Stats, error)
}

type Options struct {
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	holder    *loader.Holder
	reloader  *loader.Reloader
	executor  SearchExecutor
	cache     QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	opts      Options
	logger    *slog.Logger
}

// New creates a Handler. queryCache, collector and m may be nil.
func New(
	holder *loader.Holder,
	reloader *loader.Reloader,
	exec SearchExecutor,
	queryCache QueryCache,
	collector *analytics.Collector,
	m *metrics.Metrics,
	opts Options,
) *Handler {
	return &Handler{
		holder:    holder,
		reloader:  reloader,
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		opts:      opts,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/documents", h.Documents)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	raw := r.URL.Query().Get("q")
	if raw == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap := h.holder.Current()
	if snap == nil {
		h.countQuery("error")
		h.writeError(w, apperrors.ErrIndexNotLoaded)
		return
	}

	q := parser.Parse(raw)
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, snap.Index, q, limit)
	}
	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	if h.cache != nil && !q.Empty() {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Fingerprint, q, limit, compute)
	} else {
		result, err = compute(ctx)
	}
	if err != nil {
		h.countQuery("error")
		log.Error("search failed", "query", raw, "error", err)
		h.writeError(w, err)
		return
	}

	elapsed := time.Since(start)
	h.observe(result, cacheHit, elapsed)
	log.Info("search completed",
		"query", raw,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency", elapsed,
	)
	if h.collector != nil && !q.Empty() {
		h.collector.Track(analytics.SearchEvent{
			Query:       raw,
			Terms:       q.Terms,
			Mode:        q.Mode.String(),
			TotalHits:   result.TotalHits,
			Returned:    len(result.Results),
			LatencyMs:   float64(elapsed.Microseconds()) / 1000,
			CacheHit:    cacheHit,
			Fingerprint: snap.Fingerprint,
			Timestamp:   time.Now().UTC(),
			RequestID:   logger.RequestID(ctx),
		})
	}
	if h.cache != nil {
		w.Header().Set(CacheHeader, map[bool]string{true: "HIT", false: "MISS"}[cacheHit])
	}
	h.writeJSON(w, http.StatusOK, result)
}

type termResponse struct {
	Term       string `json:"term"`
	Terms      []int  `json:"terms"`
	TitleTerms []int  `json:"titleterms"`
}

// Term returns the raw posting lists stored under an exact key. An unknown
// key yields empty lists.
func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	idx := h.holder.Index()
	if idx == nil {
		h.writeError(w, apperrors.ErrIndexNotLoaded)
		return
	}
	term := r.PathValue("term")
	h.writeJSON(w, http.StatusOK, termResponse{
		Term:       term,
		Terms:      listOf(idx.Lookup(term)),
		TitleTerms: listOf(idx.LookupTitle(term)),
	})
}

func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	idx := h.holder.Index()
	if idx == nil {
		h.writeError(w, apperrors.ErrIndexNotLoaded)
		return
	}
	docs := idx.Documents()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(docs),
		"documents": docs,
	})
}

type indexStats struct {
	index.Stats
	Fingerprint string         `json:"fingerprint"`
	Origin      string         `json:"origin"`
	LoadedAt    time.Time      `json:"loaded_at"`
	EnvVersion  map[string]int `json:"envversion"`
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap := h.holder.Current()
	if snap == nil {
		h.writeError(w, apperrors.ErrIndexNotLoaded)
		return
	}
	h.writeJSON(w, http.StatusOK, indexStats{
		Stats:       snap.Stats,
		Fingerprint: snap.Fingerprint,
		Origin:      snap.Origin,
		LoadedAt:    snap.LoadedAt,
		EnvVersion:  snap.Index.EnvVersion,
	})
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, swapped, err := h.reloader.Reload(r.Context(), loader.TriggerManual)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"swapped":     swapped,
		"fingerprint": snap.Fingerprint,
		"documents":   snap.Stats.Documents,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.Warn("cache stats incomplete", "error", err)
	}
	var hitRate float64
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "enabled",
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"keys":     stats.Keys,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

func (h *Handler) parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return h.opts.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(limit, h.opts.MaxResults), nil
}

func (h *Handler) observe(result *executor.SearchResult, cacheHit bool, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	if result.TotalHits == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("hit")
	}
}

func (h *Handler) countQuery(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

// listOf always encodes as a JSON array, unlike PostingList which writes a
// single ID as a bare integer.
func listOf(p index.PostingList) []int {
	if p == nil {
		return []int{}
	}
	return []int(p)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
