package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Index.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "index.built", cfg.Kafka.Topics.IndexBuilt)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docindex.yaml")
	content := `
server:
  port: 9000
index:
  path: /srv/docs/searchindex.js
  watch: true
search:
  defaultLimit: 5
  maxResults: 20
redis:
  cacheTTL: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("DI_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env should win over file")
	assert.Equal(t, "/srv/docs/searchindex.js", cfg.Index.Path)
	assert.True(t, cfg.Index.Watch)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "docs", cfg.Source.Root, "unset values keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "index:\n  backend: s3\n"},
		{"postgres backend without postgres", "index:\n  backend: postgres\n"},
		{"limit above max", "search:\n  defaultLimit: 50\n  maxResults: 10\n"},
		{"zero limit", "search:\n  defaultLimit: 0\n"},
		{"negative rate limit", "server:\n  rateLimit: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestServerAccessSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	content := "server:\n  corsOrigins: [\"https://docs.example.org\"]\n  rateLimit: 5.5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("DI_SERVER_ADMIN_TOKEN", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://docs.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5.5, cfg.Server.RateLimit)
	assert.Equal(t, 20, cfg.Server.RateBurst)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
}
