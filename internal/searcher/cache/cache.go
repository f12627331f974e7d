// Package cache stores search results in Redis. Keys are derived from the
// active index fingerprint and the normalised query, so swapping the index
// makes older entries unreachable; they expire by TTL or are removed by
// Invalidate.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
)

const (
	keyPrefix = "docindex:search:"
	// computeTimeout bounds a shared computation, which no longer follows
	// the context of the request that started it.
	computeTimeout = 10 * time.Second
)

// ComputeFunc evaluates a query on a cache miss.
type ComputeFunc func(ctx context.Context) (*executor.SearchResult, error)

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CountByPattern(ctx context.Context, pattern string) (int64, error)
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int64 `json:"keys"`
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached result for q against the index with the
// given fingerprint, or runs compute once for all concurrent callers asking
// the same thing. The shared computation keeps the first caller's values
// but not its cancellation, so one client going away does not fail the
// others; each caller still stops waiting when its own ctx ends. Cache
// failures degrade to computing; they are never returned to the caller.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	q *parser.Query,
	limit int,
	compute ComputeFunc,
) (*executor.SearchResult, bool, error) {
	key := buildKey(fingerprint, q, limit)
	if result, ok := c.get(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		result, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.set(shared, key, result)
		return result, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Invalidate deletes every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.DeleteByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	keys, err := c.backend.CountByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return s, fmt.Errorf("counting cache keys: %w", err)
	}
	s.Keys = keys
	return s, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(fingerprint string, q *parser.Query, limit int) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", fingerprint, q.Key(), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
