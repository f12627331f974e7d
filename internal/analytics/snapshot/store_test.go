package snapshot

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "docindex_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "docindex"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping snapshot test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestSaveAndLatest(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	s, err := NewStore(ctx, db)
	require.NoError(t, err)

	agg := analytics.NewAggregator()
	agg.Record(analytics.SearchEvent{Query: "tree search", Terms: []string{"tree", "search"}, TotalHits: 8, LatencyMs: 1.5})
	agg.Record(analytics.SearchEvent{Query: "mcts", Terms: []string{"mct"}, LatencyMs: 0.5})
	require.NoError(t, s.Save(ctx, agg.Stats()))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(2), latest.TotalSearches)
	assert.Equal(t, int64(1), latest.ZeroResultCount)
}

func TestRunSavesOnShutdown(t *testing.T) {
	db := skipIfNoPostgres(t)
	s, err := NewStore(context.Background(), db)
	require.NoError(t, err)

	agg := analytics.NewAggregator()
	agg.Record(analytics.SearchEvent{Query: "network", TotalHits: 11})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx, agg, time.Hour)

	latest, err := s.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.GreaterOrEqual(t, latest.TotalSearches, int64(1))
}
