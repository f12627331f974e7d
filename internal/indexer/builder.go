// Package indexer builds documentation search indices from source pages.
// Builds are whole: every call produces a fresh immutable index, and the
// same pages always produce byte-identical output.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
)

// DefaultEnvVersion is recorded when the configuration names no versions.
var DefaultEnvVersion = map[string]int{"docindex": 1}

type Builder struct {
	cfg    config.SourceConfig
	logger *slog.Logger
}

func NewBuilder(cfg config.SourceConfig) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: slog.Default().With("component", "index-builder"),
	}
}

// BuildDir loads every page under the configured source root and builds an
// index from them.
func (b *Builder) BuildDir(ctx context.Context) (*index.Index, error) {
	pages, err := source.Load(ctx, b.cfg.Root, source.Options{
		Include: b.cfg.Include,
		Exclude: b.cfg.Exclude,
		Workers: b.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("loading source pages: %w", err)
	}
	return b.Build(ctx, pages)
}

type pageTerms struct {
	body  []string
	title []string
}

// Build assigns document IDs in docname order and fills every table.
func (b *Builder) Build(ctx context.Context, pages []source.Page) (*index.Index, error) {
	start := time.Now()
	sorted := make([]source.Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Docname < sorted[j].Docname
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Docname == sorted[i-1].Docname {
			return nil, fmt.Errorf("duplicate docname %q", sorted[i].Docname)
		}
	}

	terms := make([]pageTerms, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	workers := b.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, page := range sorted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			terms[i] = tokenizePage(page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tokenizing pages: %w", err)
	}

	idx := index.New()
	if len(b.cfg.EnvVersion) > 0 {
		maps.Copy(idx.EnvVersion, b.cfg.EnvVersion)
	} else {
		maps.Copy(idx.EnvVersion, DefaultEnvVersion)
	}
	for docID, page := range sorted {
		idx.Docnames = append(idx.Docnames, page.Docname)
		idx.Filenames = append(idx.Filenames, page.Filename)
		idx.Titles = append(idx.Titles, page.Title)
		for _, term := range terms[docID].body {
			idx.Terms[term] = append(idx.Terms[term], docID)
		}
		for _, term := range terms[docID].title {
			idx.TitleTerms[term] = append(idx.TitleTerms[term], docID)
		}
		seen := make(map[string]struct{}, len(page.Sections))
		for _, section := range page.Sections {
			key := section.Title + "\x00" + section.Anchor
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			idx.AllTitles[section.Title] = append(idx.AllTitles[section.Title], index.TitleRef{
				DocID:  docID,
				Anchor: section.Anchor,
			})
		}
	}

	if err := idx.Validate(); err != nil {
		return nil, fmt.Errorf("built index failed validation: %w", err)
	}
	stats := idx.Stats()
	b.logger.Info("index built",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"title_terms", stats.TitleTerms,
		"duration", time.Since(start),
	)
	return idx, nil
}

// tokenizePage returns the distinct title and body terms of a page. Every
// section title contributes title terms; a body term already recorded as a
// title term of the same page is not repeated in the body index.
func tokenizePage(page source.Page) pageTerms {
	var pt pageTerms
	titleSeen := make(map[string]struct{})
	titles := page.Sections
	if len(titles) == 0 {
		titles = []source.Section{{Title: page.Title}}
	}
	for _, section := range titles {
		for _, term := range tokenizer.Terms(section.Title) {
			if _, ok := titleSeen[term]; ok {
				continue
			}
			titleSeen[term] = struct{}{}
			pt.title = append(pt.title, term)
		}
	}

	for _, term := range tokenizer.Terms(page.Text) {
		if _, ok := titleSeen[term]; ok {
			continue
		}
		pt.body = append(pt.body, term)
	}
	return pt
}
