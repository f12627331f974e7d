package loader

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

// Source produces a decoded index and a short description of where it came
// from.
type Source interface {
	Load(ctx context.Context) (*index.Index, string, error)
}

// FileSource reads a searchindex.js file.
type FileSource struct {
	Path string
}

func (f FileSource) Load(ctx context.Context) (*index.Index, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	idx, err := index.LoadFile(f.Path)
	if err != nil {
		return nil, "", err
	}
	return idx, "file:" + f.Path, nil
}

// LatestBuild is satisfied by *store.Store.
type LatestBuild interface {
	Latest(ctx context.Context) (*index.Index, *store.Build, error)
}

// StoreSource loads the newest archived build, retrying transient failures.
type StoreSource struct {
	Store  LatestBuild
	Policy resilience.Policy
}

func (s StoreSource) Load(ctx context.Context) (*index.Index, string, error) {
	var (
		idx   *index.Index
		build *store.Build
	)
	err := resilience.Retry(ctx, "load-latest-build", s.Policy, func(ctx context.Context) error {
		var err error
		idx, build, err = s.Store.Latest(ctx)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return idx, fmt.Sprintf("postgres:build/%d", build.ID), nil
}
