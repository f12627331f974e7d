package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
)

// memBackend is an in-memory stand-in for Redis.
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errors.New("connection reset")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) CountByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			n++
		}
	}
	return n, nil
}

func (m *memBackend) DeleteByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func result(query string) *executor.SearchResult {
	return &executor.SearchResult{Query: query, TotalHits: 1}
}

func TestGetOrComputeCachesPerFingerprint(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	ctx := context.Background()
	q := parser.Parse("tree search")

	calls := 0
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls++
		return result(q.Raw), nil
	}

	_, hit, err := c.GetOrCompute(ctx, "fp1", q, 10, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	got, hit, err := c.GetOrCompute(ctx, "fp1", parser.Parse("search tree"), 10, compute)
	require.NoError(t, err)
	assert.True(t, hit, "term order does not change the key")
	assert.Equal(t, "tree search", got.Query)

	_, hit, err = c.GetOrCompute(ctx, "fp2", q, 10, compute)
	require.NoError(t, err)
	assert.False(t, hit, "a new index fingerprint misses")

	_, hit, _ = c.GetOrCompute(ctx, "fp1", q, 5, compute)
	assert.False(t, hit, "limit is part of the key")
	assert.Equal(t, 3, calls)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Hits: 1, Misses: 3, Keys: 3}, stats)
}

func TestComputeErrorIsNotCached(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "fp", parser.Parse("x"), 10, func(context.Context) (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	stats, _ := c.Stats(context.Background())
	assert.Zero(t, stats.Keys)
}

func TestBackendFailureDegradesToCompute(t *testing.T) {
	backend := newMemBackend()
	backend.failGet = true
	c := New(backend, time.Minute, nil)

	got, hit, err := c.GetOrCompute(context.Background(), "fp", parser.Parse("tree"), 10, func(context.Context) (*executor.SearchResult, error) {
		return result("tree"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "tree", got.Query)
}

func TestSingleflightCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result("tree"), nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, _, err := c.GetOrCompute(context.Background(), "fp", parser.Parse("tree"), 10, compute)
			assert.NoError(t, err)
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	backend.data["unrelated"] = []byte("x")
	c := New(backend, time.Minute, nil)
	ctx := context.Background()
	for _, q := range []string{"a", "b"} {
		_, _, err := c.GetOrCompute(ctx, "fp", parser.Parse(q+"aa"), 10, func(context.Context) (*executor.SearchResult, error) {
			return result(q), nil
		})
		require.NoError(t, err)
	}

	deleted, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Contains(t, backend.data, "unrelated")
}

func TestSharedComputeOutlivesFirstCaller(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	var computeErr atomic.Value
	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			computeErr.Store(err)
		}
		return result("tree"), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, "fp", parser.Parse("tree"), 10, compute)
		firstErr <- err
	}()
	<-started

	second := make(chan *executor.SearchResult, 1)
	go func() {
		res, _, err := c.GetOrCompute(context.Background(), "fp", parser.Parse("tree"), 10, compute)
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NotNil(t, res)
	assert.Equal(t, "tree", res.Query)
	assert.Nil(t, computeErr.Load(), "shared computation was cancelled with the first caller")
}
