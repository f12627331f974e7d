// Package index defines the documentation search index: parallel document
// tables plus term and title-term inverted indices, the wire codec for the
// Search.setIndex payload, and invariant validation.
//
// An Index is immutable once built or decoded. Any number of goroutines may
// read it concurrently without coordination.
package index

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Index is the full search-index payload.
type Index struct {
	Docnames     []string                   `json:"docnames"`
	Filenames    []string                   `json:"filenames"`
	Titles       []string                   `json:"titles"`
	Terms        map[string]PostingList     `json:"terms"`
	Objects      map[string]json.RawMessage `json:"objects"`
	ObjTypes     map[string]json.RawMessage `json:"objtypes"`
	ObjNames     map[string]json.RawMessage `json:"objnames"`
	TitleTerms   map[string]PostingList     `json:"titleterms"`
	EnvVersion   map[string]int             `json:"envversion"`
	AllTitles    map[string][]TitleRef      `json:"alltitles"`
	IndexEntries map[string]json.RawMessage `json:"indexentries"`
}

// TitleRef points a section title at the document containing it. An empty
// Anchor refers to the top of the page and is encoded as null.
type TitleRef struct {
	DocID  int
	Anchor string
}

// MarshalJSON encodes the ref as a [docID, anchor] pair.
func (t TitleRef) MarshalJSON() ([]byte, error) {
	var anchor any
	if t.Anchor != "" {
		anchor = t.Anchor
	}
	return json.Marshal([]any{t.DocID, anchor})
}

// UnmarshalJSON decodes a [docID, anchor-or-null] pair.
func (t *TitleRef) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding title ref: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding title ref: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &t.DocID); err != nil {
		return fmt.Errorf("decoding title ref doc id: %w", err)
	}
	var anchor *string
	if err := json.Unmarshal(pair[1], &anchor); err != nil {
		return fmt.Errorf("decoding title ref anchor: %w", err)
	}
	t.Anchor = ""
	if anchor != nil {
		t.Anchor = *anchor
	}
	return nil
}

// Document is one row of the parallel document tables.
type Document struct {
	ID       int    `json:"id"`
	Docname  string `json:"docname"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
}

// Stats summarises the size of an index.
type Stats struct {
	Documents  int `json:"documents"`
	Terms      int `json:"terms"`
	TitleTerms int `json:"title_terms"`
	Titles     int `json:"titles"`
	Postings   int `json:"postings"`
}

// New returns an empty index with every table allocated.
func New() *Index {
	idx := &Index{}
	idx.normalize()
	return idx
}

// Lookup returns the posting list for term, or an empty list when the term
// is absent. The returned list must not be modified.
func (idx *Index) Lookup(term string) PostingList {
	if postings, ok := idx.Terms[term]; ok {
		return postings
	}
	return PostingList{}
}

// LookupTitle is Lookup against the title-term index.
func (idx *Index) LookupTitle(term string) PostingList {
	if postings, ok := idx.TitleTerms[term]; ok {
		return postings
	}
	return PostingList{}
}

// NumDocs returns the number of documents.
func (idx *Index) NumDocs() int {
	return len(idx.Docnames)
}

// Document returns the document with the given ID.
func (idx *Index) Document(id int) (Document, bool) {
	if id < 0 || id >= len(idx.Docnames) || id >= len(idx.Filenames) || id >= len(idx.Titles) {
		return Document{}, false
	}
	return Document{
		ID:       id,
		Docname:  idx.Docnames[id],
		Filename: idx.Filenames[id],
		Title:    idx.Titles[id],
	}, true
}

// Documents returns every document in ID order.
func (idx *Index) Documents() []Document {
	docs := make([]Document, 0, len(idx.Docnames))
	for id := range idx.Docnames {
		if doc, ok := idx.Document(id); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Stats reports table sizes.
func (idx *Index) Stats() Stats {
	s := Stats{
		Documents:  len(idx.Docnames),
		Terms:      len(idx.Terms),
		TitleTerms: len(idx.TitleTerms),
		Titles:     len(idx.AllTitles),
	}
	for _, postings := range idx.Terms {
		s.Postings += len(postings)
	}
	return s
}

// Equal reports whether two indices carry the same content.
func (idx *Index) Equal(other *Index) bool {
	a, errA := Marshal(idx)
	b, errB := Marshal(other)
	return errA == nil && errB == nil && slices.Equal(a, b)
}

// normalize allocates nil tables so the encoder writes {} rather than null.
func (idx *Index) normalize() {
	if idx.Docnames == nil {
		idx.Docnames = []string{}
	}
	if idx.Filenames == nil {
		idx.Filenames = []string{}
	}
	if idx.Titles == nil {
		idx.Titles = []string{}
	}
	if idx.Terms == nil {
		idx.Terms = make(map[string]PostingList)
	}
	if idx.Objects == nil {
		idx.Objects = make(map[string]json.RawMessage)
	}
	if idx.ObjTypes == nil {
		idx.ObjTypes = make(map[string]json.RawMessage)
	}
	if idx.ObjNames == nil {
		idx.ObjNames = make(map[string]json.RawMessage)
	}
	if idx.TitleTerms == nil {
		idx.TitleTerms = make(map[string]PostingList)
	}
	if idx.EnvVersion == nil {
		idx.EnvVersion = make(map[string]int)
	}
	if idx.AllTitles == nil {
		idx.AllTitles = make(map[string][]TitleRef)
	}
	if idx.IndexEntries == nil {
		idx.IndexEntries = make(map[string]json.RawMessage)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
