package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
)

// Reload triggers.
const (
	TriggerStartup = "startup"
	TriggerWatch   = "watch"
	TriggerEvent   = "event"
	TriggerManual  = "manual"
)

// Reloader loads from a Source into a Holder. A failed load keeps the
// previous snapshot in place.
type Reloader struct {
	holder  *Holder
	source  Source
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	onSwap  []func(prev, next *Snapshot)
	lastErr error
}

func NewReloader(holder *Holder, source Source, m *metrics.Metrics) *Reloader {
	return &Reloader{
		holder:  holder,
		source:  source,
		metrics: m,
		logger:  slog.Default().With("component", "index-reloader"),
	}
}

// OnSwap registers fn to run after a new snapshot is installed.
func (r *Reloader) OnSwap(fn func(prev, next *Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSwap = append(r.onSwap, fn)
}

// Reload loads, validates and installs a new snapshot. It reports whether
// the active index changed; loading content identical to the active index
// is not a swap. Reloads are serialised.
func (r *Reloader) Reload(ctx context.Context, trigger string) (*Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	snap, err := r.load(ctx)
	if err != nil {
		r.lastErr = err
		r.record(trigger, "failed")
		r.logger.Error("index reload failed",
			"trigger", trigger,
			"error", err,
			"keeping_previous", r.holder.Current() != nil,
		)
		return r.holder.Current(), false, err
	}
	r.lastErr = nil

	prev := r.holder.Current()
	if prev != nil && prev.Fingerprint == snap.Fingerprint {
		r.record(trigger, "unchanged")
		r.logger.Debug("index unchanged", "trigger", trigger, "fingerprint", snap.Fingerprint)
		return prev, false, nil
	}

	r.holder.Swap(snap)
	r.record(trigger, "swapped")
	if r.metrics != nil {
		r.metrics.IndexDocuments.Set(float64(snap.Stats.Documents))
		r.metrics.IndexTerms.Set(float64(snap.Stats.Terms))
		r.metrics.IndexLoadedAt.Set(float64(snap.LoadedAt.Unix()))
	}
	r.logger.Info("index swapped",
		"trigger", trigger,
		"origin", snap.Origin,
		"fingerprint", snap.Fingerprint,
		"documents", snap.Stats.Documents,
		"terms", snap.Stats.Terms,
		"duration", time.Since(start),
	)
	for _, fn := range r.onSwap {
		fn(prev, snap)
	}
	return snap, true, nil
}

// LastError returns the error of the most recent reload, or nil.
func (r *Reloader) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Reloader) load(ctx context.Context) (*Snapshot, error) {
	idx, origin, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	if err := idx.Validate(); err != nil {
		var verr *index.ValidationError
		if errors.As(err, &verr) {
			r.logger.Warn("rejecting invalid index", "origin", origin, "problems", verr.Problems)
		}
		return nil, fmt.Errorf("validating index from %s: %w", origin, err)
	}
	fp, err := index.Fingerprint(idx)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting index: %w", err)
	}
	return &Snapshot{
		Index:       idx,
		Fingerprint: fp,
		Origin:      origin,
		LoadedAt:    time.Now().UTC(),
		Stats:       idx.Stats(),
	}, nil
}

func (r *Reloader) record(trigger, status string) {
	if r.metrics != nil {
		r.metrics.IndexReloadsTotal.WithLabelValues(trigger, status).Inc()
	}
}
