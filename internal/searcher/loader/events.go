package loader

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

// HandleBuildEvents returns a Kafka handler for the index.built topic. An
// event for the fingerprint already being served is acknowledged without
// reloading. Undecodable events are logged and skipped so they do not block
// the partition.
func HandleBuildEvents(r *Reloader) kafka.Handler {
	logger := slog.Default().With("component", "build-event-handler")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.BuildEvent](value)
		if err != nil {
			logger.Error("skipping malformed build event", "key", string(key), "error", err)
			return nil
		}
		if cur := r.holder.Current(); cur != nil && cur.Fingerprint == event.Fingerprint {
			logger.Debug("build already active", "fingerprint", event.Fingerprint)
			return nil
		}
		logger.Info("build announced",
			"fingerprint", event.Fingerprint,
			"docs", event.Docs,
			"built_at", event.BuiltAt,
		)
		_, _, err = r.Reload(ctx, TriggerEvent)
		return err
	}
}
