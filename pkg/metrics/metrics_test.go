package metrics

import (
	"io"
	"os"
	"path/filepath"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegisterOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IndexReloadsTotal.WithLabelValues("watch", "swapped").Inc()
	m.IndexDocuments.Set(12)
	m.CacheHitsTotal.Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexReloadsTotal.WithLabelValues("watch", "swapped")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheHitsTotal))

	// a second set on a fresh registry must not panic on duplicate registration
	New(prometheus.NewRegistry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IndexTerms.Set(830)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "index_terms 830")
}

func TestWriteTextfile(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.BuildsTotal.WithLabelValues("success").Inc()
	m.BuildDuration.Observe(0.2)

	path := filepath.Join(t.TempDir(), "docindex.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `index_builds_total{status="success"} 1`)
	assert.Contains(t, string(data), "index_build_duration_seconds_count 1")
}
