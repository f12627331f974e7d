package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

const fixture = "../../internal/indexer/index/testdata/searchindex.js"

func run(t *testing.T, cmd command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cmd(context.Background(), args, &out)
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := run(t, runValidate, "--index", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "ok, 12 documents")

	bad := filepath.Join(t.TempDir(), "searchindex.js")
	require.NoError(t, os.WriteFile(bad, []byte(`Search.setIndex({"docnames":["a","b"],"filenames":["a.rst"],"titles":["A","B"],"terms":{"x":[0,5]},"titleterms":{}})`), 0o644))
	out, err = run(t, runValidate, "-i", bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidIndex)
	assert.Contains(t, out, "document tables differ in length")
	assert.Contains(t, out, `terms["x"]: document id 5 out of range`)
}

func TestQuery(t *testing.T) {
	out, err := run(t, runQuery, "--index", fixture, "tree", "search")
	require.NoError(t, err)
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "retrosynthesis_planning#tree-search")
	assert.Contains(t, out, "Retrosynthesis planning > Tree search")

	out, err = run(t, runQuery, "--index", fixture, "--exact", "expan")
	require.NoError(t, err)
	assert.Contains(t, out, "0 hits")

	_, err = run(t, runQuery, "--index", fixture)
	assert.ErrorContains(t, err, "query text is required")
}

func TestQueryJSON(t *testing.T) {
	out, err := run(t, runQuery, "--index", fixture, "--json", "-n", "1", "network")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_hits": 11`)
	assert.Contains(t, out, `"docname": "policy_network"`)
}

func TestLookup(t *testing.T) {
	out, err := run(t, runLookup, "--index", fixture, "Networks")
	require.NoError(t, err)
	assert.Contains(t, out, `key "network"`)
	assert.Contains(t, out, "terms: 7 documents")
	assert.Contains(t, out, "titleterms: 2 documents")
	assert.Contains(t, out, "value_network")

	out, err = run(t, runLookup, "--index", fixture, "the")
	require.NoError(t, err)
	assert.Contains(t, out, "never indexed")

	_, err = run(t, runLookup, "--index", fixture)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	out, err := run(t, runStats, "--index", fixture)
	require.NoError(t, err)
	assert.Regexp(t, `documents\s+12\n`, out)
	assert.Regexp(t, `terms\s+830\n`, out)
	assert.Regexp(t, `title terms\s+36\n`, out)
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.rst"),
		[]byte("SynTool\n=======\n\nRetrosynthesis planning toolkit.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "installation.md"),
		[]byte("# Installation\n\nInstall on Linux with pip.\n"), 0o644))
	out := filepath.Join(t.TempDir(), "html", "searchindex.js")
	metricsFile := filepath.Join(t.TempDir(), "build.prom")

	stdout, err := run(t, runBuild, "--config", "", "--source", root, "--out", out, "--metrics-file", metricsFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 documents")

	idx, err := index.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "installation"}, idx.Docnames)
	assert.Equal(t, []string{"SynTool", "Installation"}, idx.Titles)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `index_builds_total{status="success"} 1`)
}

func TestBuildPublishNeedsBackend(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.rst"), []byte("Home\n====\n\nText.\n"), 0o644))
	out := filepath.Join(t.TempDir(), "searchindex.js")

	_, err := run(t, runBuild, "--config", "", "--source", root, "--out", out, "--publish")
	assert.ErrorContains(t, err, "--publish needs")
}

func TestUnknownFlag(t *testing.T) {
	_, err := run(t, runStats, "--nope")
	assert.Error(t, err)
}
