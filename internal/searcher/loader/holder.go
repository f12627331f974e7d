// Package loader keeps the search service's active index. Indices are
// loaded from a file or from the build archive, validated, and swapped in
// atomically; readers always see a complete index.
package loader

import (
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
)

// Snapshot is an immutable loaded index with its provenance.
type Snapshot struct {
	Index       *index.Index
	Fingerprint string
	Origin      string
	LoadedAt    time.Time
	Stats       index.Stats
}

// Holder publishes the active snapshot to concurrent readers.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the active snapshot or nil before the first load.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Index returns the active index or nil.
func (h *Holder) Index() *index.Index {
	if s := h.current.Load(); s != nil {
		return s.Index
	}
	return nil
}

// Swap installs s and returns the snapshot it replaced.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}
