// Package tokenizer provides text tokenisation for the documentation index.
// It splits text into word runs, lower-cases and Porter-stems them, and
// drops English stop-words. Index-side and query-side filtering differ the
// same way the generated search payload does, so terms produced here line
// up with terms stored in existing indices.
package tokenizer

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

var stopWords = map[string]struct{}{
	"a": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "near": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {},
}

// Split returns the runs of letters, digits and underscores in text, in
// order, with their original case.
func Split(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

// Tokenize breaks text into index terms. Each word is stemmed; when the stem
// is rejected by the filter the original word is tried instead, so a
// capitalised stop-word such as "The" survives while "the" does not.
func Tokenize(text string) []string {
	words := Split(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if term, ok := IndexTerm(word); ok {
			tokens = append(tokens, term)
		}
	}
	return tokens
}

// IndexTerm maps a raw word to the key it is stored under.
func IndexTerm(word string) (string, bool) {
	if stemmed := Stem(word); keep(stemmed) {
		return stemmed, true
	}
	if keep(word) {
		return word, true
	}
	return "", false
}

// Terms returns the distinct index terms of text in first-seen order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, term := range tokens {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// Stem lower-cases and Porter-stems a single word.
func Stem(word string) string {
	word = strings.ToLower(word)
	if len([]rune(word)) <= 2 {
		return stemShort(word)
	}
	return porterstemmer.StemString(word)
}

// IsStopWord reports whether the lower-cased word is an English stop-word.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// stemShort applies the plural rule to one- and two-letter words, which the
// Porter implementation leaves untouched ("is" -> "i").
func stemShort(word string) string {
	if len(word) == 2 && word[1] == 's' && word[0] != 's' {
		return word[:1]
	}
	return word
}

// keep rejects empty words, exact-case stop-words and one- or two-character
// hiragana fragments.
func keep(word string) bool {
	if word == "" {
		return false
	}
	runes := []rune(word)
	first := runes[0]
	if len(runes) < 3 && first > 12353 && first < 12436 {
		return false
	}
	if first < 256 {
		if _, stop := stopWords[word]; stop {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
