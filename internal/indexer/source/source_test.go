package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyPage = `.. _policy:

==============
Policy network
==============

Introduction
------------

The policy network predicts which :ref:` + "`reaction rules`" + ` apply.

.. code-block:: bash

    syntool policy_training --config policy.yaml

Configuration
-------------

Introduction
------------

Repeated heading on purpose.
`

func TestParseRST(t *testing.T) {
	page := Parse("policy_network.rst", []byte(policyPage))

	assert.Equal(t, "policy_network", page.Docname)
	assert.Equal(t, "policy_network.rst", page.Filename)
	assert.Equal(t, "Policy network", page.Title)

	want := []Section{
		{Title: "Policy network", Anchor: "policy-network"},
		{Title: "Introduction", Anchor: "introduction"},
		{Title: "Configuration", Anchor: "configuration"},
		{Title: "Introduction", Anchor: "introduction-1"},
	}
	if diff := cmp.Diff(want, page.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	assert.Contains(t, page.Text, "predicts which `reaction rules`")
	assert.NotContains(t, page.Text, ":ref:")
	assert.NotContains(t, page.Text, "code-block")
	assert.Contains(t, page.Text, "policy_training", "directive bodies are still text")
}

func TestParseMarkdown(t *testing.T) {
	content := "# Data download\n\nGet the data.\n\n```\n# not a heading\n```\n\n## CLI ##\n"
	page := Parse("guides/data_download.md", []byte(content))

	assert.Equal(t, "guides/data_download", page.Docname)
	assert.Equal(t, "Data download", page.Title)
	require.Len(t, page.Sections, 2)
	assert.Equal(t, Section{Title: "CLI", Anchor: "cli"}, page.Sections[1])
	assert.Contains(t, page.Text, "# not a heading")
}

func TestParseWithoutHeadingsFallsBackToDocname(t *testing.T) {
	page := Parse("notes.txt", []byte("just text\n"))
	assert.Equal(t, "notes", page.Title)
	assert.Empty(t, page.Sections)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"SynTool applications":      "syntool-applications",
		"Reaction rules extraction": "reaction-rules-extraction",
		"1. Getting started!":       "getting-started",
		"CLI":                       "cli",
		"???":                       "section",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), "Slug(%q)", in)
	}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestDiscoverAndLoad(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.rst":             "SynTool\n=======\n\nWelcome.\n",
		"user_guide.rst":        "User guide\n==========\n",
		"api/tree.md":           "# Tree search\n",
		"_build/html/index.rst": "ignored\n=======\n",
		"images/logo.png":       "png",
		"installation.rst":      "Installation\n============\n",
	})
	opts := Options{
		Include: []string{"**/*.rst", "**/*.md"},
		Exclude: []string{"_build/**"},
		Workers: 2,
	}

	paths, err := Discover(root, opts.Include, opts.Exclude)
	require.NoError(t, err)
	assert.Equal(t, []string{"api/tree.md", "index.rst", "installation.rst", "user_guide.rst"}, paths)

	pages, err := Load(context.Background(), root, opts)
	require.NoError(t, err)
	require.Len(t, pages, 4)
	assert.Equal(t, "api/tree", pages[0].Docname)
	assert.Equal(t, "SynTool", pages[1].Title)
	assert.Equal(t, "user_guide", pages[3].Docname)
}

func TestDiscoverRejectsBadPattern(t *testing.T) {
	_, err := Discover(t.TempDir(), []string{"[unclosed"}, nil)
	assert.Error(t, err)
}
