// Package ranker scores and orders search results the way the generated
// documentation search page does, so a service answer matches what a
// reader would see in the browser.
package ranker

import (
	"math"
	"sort"
	"strings"
)

// Match weights.
const (
	ScoreTitle        = 15
	ScoreTerm         = 5
	ScorePartialTitle = 7
	ScorePartialTerm  = 2
	// pageTitleBoost lifts a section match that is the page's own title.
	pageTitleBoost = 1
)

type Kind string

const (
	KindText    Kind = "text"
	KindSection Kind = "section"
)

type Result struct {
	DocID    int    `json:"doc_id"`
	Docname  string `json:"docname"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Anchor   string `json:"anchor,omitempty"`
	Score    int    `json:"score"`
	Kind     Kind   `json:"kind"`
}

// SectionScore scores a section title against the lower-cased query phrase.
// It reports false when the title does not contain the phrase or the phrase
// covers less than half of it.
func SectionScore(phrase, title string, isPageTitle bool) (int, bool) {
	if phrase == "" || title == "" {
		return 0, false
	}
	normalized := strings.ToLower(strings.TrimSpace(title))
	if !strings.Contains(normalized, phrase) || 2*len(phrase) < len(title) {
		return 0, false
	}
	score := int(math.Round(float64(ScoreTitle) * float64(len(phrase)) / float64(len(title))))
	if isPageTitle {
		score += pageTitleBoost
	}
	return score, true
}

// Rank orders results by score, then title and docname, drops repeats of the
// same document, anchor and title, and keeps at most limit entries. A limit
// of zero or less keeps everything.
func Rank(results []Result, limit int) []Result {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
		if at != bt {
			return at < bt
		}
		if a.Docname != b.Docname {
			return a.Docname < b.Docname
		}
		return a.Anchor < b.Anchor
	})

	seen := make(map[string]struct{}, len(sorted))
	ranked := make([]Result, 0, len(sorted))
	for _, r := range sorted {
		key := r.Docname + "#" + r.Anchor + "\x00" + r.Title
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ranked = append(ranked, r)
		if limit > 0 && len(ranked) == limit {
			break
		}
	}
	return ranked
}
