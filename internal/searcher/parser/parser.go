// Package parser turns a free-text search box query into a Query: stemmed
// search terms, excluded terms and the combination mode.
package parser

import (
	"slices"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/tokenizer"
)

type Mode int

const (
	ModeAND Mode = iota
	ModeOR
)

func (m Mode) String() string {
	if m == ModeOR {
		return "OR"
	}
	return "AND"
}

type Query struct {
	Raw string
	// Terms are stemmed search terms in first-seen order.
	Terms    []string
	Excluded []string
	Mode     Mode
	// Phrase is the lower-cased text of the searched words, used to match
	// section titles.
	Phrase string
	// Highlight holds the lower-cased words behind Terms.
	Highlight []string
}

// Parse never fails: words that cannot become terms are dropped.
func Parse(raw string) *Query {
	q := &Query{
		Raw:       raw,
		Terms:     make([]string, 0),
		Excluded:  make([]string, 0),
		Highlight: make([]string, 0),
		Mode:      ModeAND,
	}
	var phrase []string
	excludeNext := false
	for _, field := range strings.Fields(raw) {
		switch field {
		case "AND":
			q.Mode = ModeAND
			continue
		case "OR":
			q.Mode = ModeOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}

		exclude := excludeNext
		excludeNext = false
		if rest, ok := strings.CutPrefix(field, "-"); ok {
			exclude = true
			field = rest
		}
		if !exclude {
			phrase = append(phrase, strings.ToLower(field))
		}

		for _, word := range tokenizer.Split(field) {
			lower := strings.ToLower(word)
			if tokenizer.IsStopWord(lower) || allDigits(lower) {
				continue
			}
			term := tokenizer.Stem(lower)
			if exclude {
				q.Excluded = appendUnique(q.Excluded, term)
				continue
			}
			if !slices.Contains(q.Terms, term) {
				q.Terms = append(q.Terms, term)
				q.Highlight = append(q.Highlight, lower)
			}
		}
	}
	q.Phrase = strings.Join(phrase, " ")
	return q
}

// Empty reports whether the query has nothing to search for.
func (q *Query) Empty() bool {
	return len(q.Terms) == 0
}

// Key is a normalised form of the query: two queries with the same key
// produce the same results against the same index.
func (q *Query) Key() string {
	terms := slices.Sorted(slices.Values(q.Terms))
	excluded := slices.Sorted(slices.Values(q.Excluded))
	parts := []string{q.Mode.String(), strings.Join(terms, ","), q.Phrase}
	if len(excluded) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excluded, ","))
	}
	return strings.Join(parts, "|")
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
