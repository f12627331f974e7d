package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

type fakeSink struct {
	mu    sync.Mutex
	fail  bool
	calls int
	msgs  []kafka.Message
}

func (f *fakeSink) Publish(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func event(query string, hits int, latency float64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Query:     query,
		Terms:     []string{query},
		TotalHits: hits,
		LatencyMs: latency,
		CacheHit:  cacheHit,
		Timestamp: time.Now(),
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(event("network", 11, 1, false))
	agg.Record(event("network", 11, 2, true))
	agg.Record(event("tree", 8, 3, false))
	agg.Record(event("mcts", 0, 4, false))

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 2.5, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 3.0, stats.P50LatencyMs)
	assert.Equal(t, []QueryCount{{"network", 2}, {"mcts", 1}, {"tree", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"mcts", 1}}, stats.ZeroResultQueries)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	value, err := json.Marshal(event("tree", 3, 1, false))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), nil, value))
	require.NoError(t, handle(context.Background(), nil, []byte("{")))
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestCollectorRecordsLocallyWithoutSink(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, agg, CollectorOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	c.Track(event("tree", 1, 1, false))
	c.Track(event("tree", 1, 1, false))
	cancel()
	c.Wait()
	assert.Equal(t, int64(2), agg.Stats().TotalSearches)
}

func TestCollectorBatchesToSink(t *testing.T) {
	sink := &fakeSink{}
	c := NewCollector(sink, nil, CollectorOptions{BatchSize: 2, FlushInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	for range 5 {
		c.Track(event("tree", 1, 1, false))
	}
	require.Eventually(t, func() bool { return sink.count() >= 4 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	c.Wait()
	assert.Equal(t, 5, sink.count(), "remaining event flushed on shutdown")
}

func TestCollectorKeepsEventsAfterFailedFlush(t *testing.T) {
	sink := &fakeSink{fail: true}
	c := NewCollector(sink, nil, CollectorOptions{BatchSize: 1, FlushInterval: time.Hour})

	batch := c.accept(context.Background(), nil, event("a", 1, 1, false))
	assert.Len(t, batch, 1)

	sink.fail = false
	batch = c.flush(context.Background(), batch)
	assert.Empty(t, batch)
	assert.Equal(t, 1, sink.count())
}

func TestTrackDropsWhenFull(t *testing.T) {
	c := NewCollector(nil, NewAggregator(), CollectorOptions{BufferSize: 1})
	c.Track(event("a", 1, 1, false))
	c.Track(event("b", 1, 1, false))
	assert.Len(t, c.events, 1)
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(event("tree", 1, 1, false))

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)
}
