package indexer

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
)

// BuildEvent announces a finished build on the index.built topic.
type BuildEvent struct {
	Fingerprint string    `json:"fingerprint"`
	Path        string    `json:"path,omitempty"`
	Docs        int       `json:"docs"`
	Terms       int       `json:"terms"`
	BuiltAt     time.Time `json:"built_at"`
}

// NewBuildEvent describes idx as written to path. Path is empty when the
// build was only archived.
func NewBuildEvent(idx *index.Index, path string) (BuildEvent, error) {
	fp, err := index.Fingerprint(idx)
	if err != nil {
		return BuildEvent{}, err
	}
	stats := idx.Stats()
	return BuildEvent{
		Fingerprint: fp,
		Path:        path,
		Docs:        stats.Documents,
		Terms:       stats.Terms,
		BuiltAt:     time.Now().UTC(),
	}, nil
}
