package store

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "docindex_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "docindex"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	db, err := postgres.New(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping store test: postgres unavailable: %v", err)
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

	s, err := New(ctx, db)
	require.NoError(t, err)

	idx, err := index.LoadFile("../index/testdata/searchindex.js")
	require.NoError(t, err)

	saved, err := s.Save(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, 12, saved.Documents)

	again, err := s.Save(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID, "same fingerprint is stored once")

	latest, build, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Fingerprint, build.Fingerprint)
	assert.True(t, idx.Equal(latest))

	builds, err := s.List(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, builds)
}

func TestSaveAgainMakesBuildLatest(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	s, err := New(ctx, db)
	require.NoError(t, err)

	a, err := index.LoadFile("../index/testdata/searchindex.js")
	require.NoError(t, err)
	b, err := index.LoadFile("../index/testdata/searchindex.js")
	require.NoError(t, err)
	b.Titles[0] = "Renamed " + strconv.FormatInt(time.Now().UnixNano(), 10)

	first, err := s.Save(ctx, a)
	require.NoError(t, err)
	second, err := s.Save(ctx, b)
	require.NoError(t, err)
	require.NotEqual(t, first.Fingerprint, second.Fingerprint)

	_, latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Fingerprint, latest.Fingerprint)

	again, err := s.Save(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.BuiltAt.After(first.BuiltAt))

	_, latest, err = s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, latest.Fingerprint)
}
