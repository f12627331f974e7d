// Package publisher distributes a finished build: it archives the index in
// PostgreSQL and announces it on Kafka so running searchers reload.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

// Archiver stores builds. *store.Store satisfies it.
type Archiver interface {
	Save(ctx context.Context, idx *index.Index) (*store.Build, error)
}

// Notifier sends build events. *kafka.Producer satisfies it.
type Notifier interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	archive  Archiver
	notifier Notifier
	policy   resilience.Policy
	logger   *slog.Logger
}

// New creates a Publisher. Either dependency may be nil to skip that step.
func New(archive Archiver, notifier Notifier) *Publisher {
	return &Publisher{
		archive:  archive,
		notifier: notifier,
		policy:   resilience.DefaultPolicy(),
		logger:   slog.Default().With("component", "build-publisher"),
	}
}

// WithPolicy overrides the retry policy used for both backends.
func (p *Publisher) WithPolicy(policy resilience.Policy) *Publisher {
	p.policy = policy
	return p
}

// Publish archives idx and then announces it. The event is only sent once
// the archive write succeeded, so a searcher that reacts to it can load the
// build from PostgreSQL.
func (p *Publisher) Publish(ctx context.Context, idx *index.Index, path string) (indexer.BuildEvent, error) {
	event, err := indexer.NewBuildEvent(idx, path)
	if err != nil {
		return event, fmt.Errorf("describing build: %w", err)
	}

	if p.archive != nil {
		err := resilience.Retry(ctx, "archive-build", p.policy, func(ctx context.Context) error {
			_, err := p.archive.Save(ctx, idx)
			return err
		})
		if err != nil {
			return event, fmt.Errorf("archiving build %s: %w", short(event.Fingerprint), err)
		}
	}

	if p.notifier != nil {
		msg := kafka.Message{Key: event.Fingerprint, Value: event}
		err := resilience.Retry(ctx, "announce-build", p.policy, func(ctx context.Context) error {
			return p.notifier.Publish(ctx, msg)
		})
		if err != nil {
			return event, fmt.Errorf("announcing build %s: %w", short(event.Fingerprint), err)
		}
	}

	p.logger.Info("build published",
		"fingerprint", short(event.Fingerprint),
		"docs", event.Docs,
		"archived", p.archive != nil,
		"announced", p.notifier != nil,
	)
	return event, nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
