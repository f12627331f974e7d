package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// PostingList is the ordered list of document IDs a term occurs in.
//
// On the wire a list holding a single document is written as a bare integer
// and anything else as an array, matching what documentation generators emit.
type PostingList []int

// MarshalJSON writes single-element lists as a bare integer.
func (p PostingList) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(p))
}

// UnmarshalJSON accepts either a bare integer or an array of integers.
func (p *PostingList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty posting list")
	}
	if data[0] == '[' {
		var ids []int
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("decoding posting list: %w", err)
		}
		*p = ids
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("decoding posting list: %w", err)
	}
	*p = PostingList{id}
	return nil
}

// Contains reports whether docID is in the list.
func (p PostingList) Contains(docID int) bool {
	return slices.Contains(p, docID)
}

// Duplicates returns every document ID that appears more than once.
func (p PostingList) Duplicates() []int {
	seen := make(map[int]struct{}, len(p))
	var dups []int
	for _, id := range p {
		if _, ok := seen[id]; ok {
			dups = append(dups, id)
			continue
		}
		seen[id] = struct{}{}
	}
	return dups
}

// Union merges lists into one ascending, duplicate-free list.
func Union(lists ...PostingList) PostingList {
	seen := make(map[int]struct{})
	result := make(PostingList, 0)
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	slices.Sort(result)
	return result
}

// Intersect returns the ascending list of IDs present in every list.
// Intersecting zero lists yields an empty list.
func Intersect(lists ...PostingList) PostingList {
	if len(lists) == 0 {
		return PostingList{}
	}
	shortest := 0
	for i, list := range lists {
		if len(list) < len(lists[shortest]) {
			shortest = i
		}
	}
	candidates := make(map[int]struct{}, len(lists[shortest]))
	for _, id := range lists[shortest] {
		candidates[id] = struct{}{}
	}
	for i, list := range lists {
		if i == shortest {
			continue
		}
		docSet := make(map[int]struct{}, len(list))
		for _, id := range list {
			docSet[id] = struct{}{}
		}
		for id := range candidates {
			if _, ok := docSet[id]; !ok {
				delete(candidates, id)
			}
		}
	}
	result := make(PostingList, 0, len(candidates))
	for id := range candidates {
		result = append(result, id)
	}
	slices.Sort(result)
	return result
}
