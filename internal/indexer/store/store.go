// Package store archives built search indices in PostgreSQL so a searcher
// can load the latest build without access to the build host's filesystem.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

// Schema creates the table the store writes to.
const Schema = `CREATE TABLE IF NOT EXISTS index_builds (
    id          BIGSERIAL PRIMARY KEY,
    fingerprint TEXT NOT NULL UNIQUE,
    payload     JSONB NOT NULL,
    documents   INTEGER NOT NULL,
    terms       INTEGER NOT NULL,
    built_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Build describes one archived index.
type Build struct {
	ID          int64     `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	BuiltAt     time.Time `json:"built_at"`
}

// Store persists index builds in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store and makes sure its table exists.
func New(ctx context.Context, db *postgres.Client) (*Store, error) {
	if _, err := db.DB.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("creating index_builds table: %w", err)
	}
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "index-store"),
	}, nil
}

// Save archives idx. Saving an index whose fingerprint is already stored
// keeps the existing row but moves its built_at forward, so rebuilding an
// earlier index makes it the latest again.
func (s *Store) Save(ctx context.Context, idx *index.Index) (*Build, error) {
	payload, err := index.Marshal(idx)
	if err != nil {
		return nil, err
	}
	fingerprint, err := index.Fingerprint(idx)
	if err != nil {
		return nil, err
	}
	stats := idx.Stats()

	var b Build
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx,
			`INSERT INTO index_builds (fingerprint, payload, documents, terms, built_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (fingerprint) DO UPDATE SET built_at = EXCLUDED.built_at
			RETURNING id, fingerprint, documents, terms, built_at`,
			fingerprint, payload, stats.Documents, stats.Terms, time.Now().UTC(),
		).Scan(&b.ID, &b.Fingerprint, &b.Documents, &b.Terms, &b.BuiltAt)
	})
	if err != nil {
		return nil, fmt.Errorf("saving index build: %w", err)
	}
	s.logger.Info("index build archived",
		"id", b.ID,
		"fingerprint", b.Fingerprint,
		"documents", b.Documents,
	)
	return &b, nil
}

// Latest loads the most recently archived index.
func (s *Store) Latest(ctx context.Context) (*index.Index, *Build, error) {
	var b Build
	var payload []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, fingerprint, payload, documents, terms, built_at
		FROM index_builds ORDER BY built_at DESC, id DESC LIMIT 1`,
	).Scan(&b.ID, &b.Fingerprint, &payload, &b.Documents, &b.Terms, &b.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("no archived builds: %w", apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying latest build: %w", err)
	}
	idx, err := index.Decode(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding build %d: %w", b.ID, err)
	}
	return idx, &b, nil
}

// List returns the last limit builds, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Build, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, fingerprint, documents, terms, built_at
		FROM index_builds ORDER BY built_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Fingerprint, &b.Documents, &b.Terms, &b.BuiltAt); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}
