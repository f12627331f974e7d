package index

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// ValidationError lists every invariant an index violates.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d problem(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidIndex
}

// Validate checks the data-shape invariants:
//   - docnames, filenames and titles have equal length
//   - every posting-list ID (terms, titleterms, alltitles) is a valid document
//   - no posting list repeats a document ID
//   - no term key is empty
//
// It returns nil or a *ValidationError.
func (idx *Index) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	n := len(idx.Docnames)
	if len(idx.Filenames) != n || len(idx.Titles) != n {
		add("document tables differ in length: docnames=%d filenames=%d titles=%d",
			n, len(idx.Filenames), len(idx.Titles))
		n = min(n, len(idx.Filenames), len(idx.Titles))
	}

	checkPostings := func(table string, postings map[string]PostingList) {
		for _, term := range sortedKeys(postings) {
			list := postings[term]
			if term == "" {
				add("%s: empty term key", table)
			}
			for _, id := range list {
				if id < 0 || id >= n {
					add("%s[%q]: document id %d out of range [0,%d)", table, term, id, n)
				}
			}
			if dups := list.Duplicates(); len(dups) > 0 {
				add("%s[%q]: duplicate document ids %v", table, term, dups)
			}
		}
	}
	checkPostings("terms", idx.Terms)
	checkPostings("titleterms", idx.TitleTerms)

	for _, title := range sortedKeys(idx.AllTitles) {
		for _, ref := range idx.AllTitles[title] {
			if ref.DocID < 0 || ref.DocID >= n {
				add("alltitles[%q]: document id %d out of range [0,%d)", title, ref.DocID, n)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
