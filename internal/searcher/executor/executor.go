// Package executor evaluates parsed queries against a loaded index.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// minPartialLen is the shortest word matched as a substring of index keys.
const minPartialLen = 3

type SearchResult struct {
	Query     string          `json:"query"`
	Mode      string          `json:"mode"`
	Terms     []string        `json:"terms"`
	Excluded  []string        `json:"excluded,omitempty"`
	Highlight []string        `json:"highlight"`
	TotalHits int             `json:"total_hits"`
	Results   []ranker.Result `json:"results"`
	// TermStats counts the documents each search term matched before
	// combination.
	TermStats map[string]int `json:"term_stats"`
	TookMs    float64        `json:"took_ms"`
}

type Options struct {
	PartialMatching bool
}

type Executor struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Executor {
	return &Executor{
		opts:   opts,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute runs q against idx and returns at most limit results. A query
// without search terms yields an empty result, not an error.
func (e *Executor) Execute(ctx context.Context, idx *index.Index, q *parser.Query, limit int) (*SearchResult, error) {
	if idx == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	start := time.Now()
	result := &SearchResult{
		Query:     q.Raw,
		Mode:      q.Mode.String(),
		Terms:     q.Terms,
		Excluded:  q.Excluded,
		Highlight: q.Highlight,
		Results:   []ranker.Result{},
		TermStats: make(map[string]int, len(q.Terms)),
	}
	if q.Empty() {
		return result, nil
	}

	// doc -> best score over the matched terms
	matched := make(map[int]int)
	perTerm := make([]index.PostingList, 0, len(q.Terms))
	for _, term := range q.Terms {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("executing query %q: %w", q.Raw, err)
		}
		scores := e.collect(idx, term)
		result.TermStats[term] = len(scores)
		docs := make(index.PostingList, 0, len(scores))
		for docID, score := range scores {
			matched[docID] = max(matched[docID], score)
			docs = append(docs, docID)
		}
		perTerm = append(perTerm, docs)
	}
	if q.Mode == parser.ModeAND {
		all := make(map[int]int, len(matched))
		for _, docID := range index.Intersect(perTerm...) {
			all[docID] = matched[docID]
		}
		matched = all
	}

	excluded := excludedDocs(idx, q.Excluded)
	var hits []ranker.Result
	for docID, best := range matched {
		if _, drop := excluded[docID]; drop {
			continue
		}
		doc, ok := idx.Document(docID)
		if !ok {
			continue
		}
		hits = append(hits, ranker.Result{
			DocID:    doc.ID,
			Docname:  doc.Docname,
			Filename: doc.Filename,
			Title:    doc.Title,
			Score:    best,
			Kind:     ranker.KindText,
		})
	}
	hits = append(hits, sectionHits(idx, q.Phrase, excluded)...)

	result.TotalHits = len(hits)
	result.Results = ranker.Rank(hits, limit)
	result.TookMs = float64(time.Since(start).Microseconds()) / 1000
	e.logger.Debug("query executed",
		"query", q.Raw,
		"terms", q.Terms,
		"hits", result.TotalHits,
		"returned", len(result.Results),
	)
	return result, nil
}

// collect returns every document matching term with its best score. Exact
// keys score highest; substring matches are only tried for a table that has
// no exact entry.
func (e *Executor) collect(idx *index.Index, term string) map[int]int {
	scores := make(map[int]int)
	add := func(postings index.PostingList, score int) {
		for _, docID := range postings {
			if score > scores[docID] {
				scores[docID] = score
			}
		}
	}

	body, bodyExact := idx.Terms[term]
	title, titleExact := idx.TitleTerms[term]
	add(body, ranker.ScoreTerm)
	add(title, ranker.ScoreTitle)

	if !e.opts.PartialMatching || utf8.RuneCountInString(term) < minPartialLen {
		return scores
	}
	// Scores keep the maximum, so map order does not matter.
	if !bodyExact {
		for key, postings := range idx.Terms {
			if strings.Contains(key, term) {
				add(postings, ranker.ScorePartialTerm)
			}
		}
	}
	if !titleExact {
		for key, postings := range idx.TitleTerms {
			if strings.Contains(key, term) {
				add(postings, ranker.ScorePartialTitle)
			}
		}
	}
	return scores
}

func excludedDocs(idx *index.Index, terms []string) map[int]struct{} {
	docs := make(map[int]struct{})
	for _, term := range terms {
		for _, docID := range index.Union(idx.Lookup(term), idx.LookupTitle(term)) {
			docs[docID] = struct{}{}
		}
	}
	return docs
}

// sectionHits matches the query phrase against every section title.
func sectionHits(idx *index.Index, phrase string, excluded map[int]struct{}) []ranker.Result {
	if phrase == "" {
		return nil
	}
	var hits []ranker.Result
	for title, refs := range idx.AllTitles {
		if _, ok := ranker.SectionScore(phrase, title, false); !ok {
			continue
		}
		for _, ref := range refs {
			if _, drop := excluded[ref.DocID]; drop {
				continue
			}
			doc, ok := idx.Document(ref.DocID)
			if !ok {
				continue
			}
			isPage := doc.Title == title
			score, _ := ranker.SectionScore(phrase, title, isPage)
			display := title
			if !isPage {
				display = doc.Title + " > " + title
			}
			hits = append(hits, ranker.Result{
				DocID:    doc.ID,
				Docname:  doc.Docname,
				Filename: doc.Filename,
				Title:    display,
				Anchor:   ref.Anchor,
				Score:    score,
				Kind:     ranker.KindSection,
			})
		}
	}
	return hits
}
