package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
)

// Sink receives batches of events. *kafka.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Recorder consumes events locally. *Aggregator satisfies it.
type Recorder interface {
	Record(event SearchEvent)
}

type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector takes search events off the request path. Events go to the sink
// in batches when one is configured, otherwise straight to the recorder.
// Track never blocks: when the buffer is full the event is dropped.
type Collector struct {
	sink     Sink
	recorder Recorder
	opts     CollectorOptions
	events   chan SearchEvent
	done     chan struct{}
	logger   *slog.Logger
}

func NewCollector(sink Sink, recorder Recorder, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	return &Collector{
		sink:     sink,
		recorder: recorder,
		opts:     opts,
		events:   make(chan SearchEvent, opts.BufferSize),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "analytics-collector"),
	}
}

func (c *Collector) Track(event SearchEvent) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("analytics event dropped, buffer full")
	}
}

// Run drains events until ctx is cancelled, then flushes what is left.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.done)
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"batch_size", c.opts.BatchSize,
		"kafka", c.sink != nil,
	)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, c.opts.BatchSize)
	for {
		select {
		case event := <-c.events:
			batch = c.accept(ctx, batch, event)
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case event := <-c.events:
					batch = c.accept(flushCtx, batch, event)
				default:
					c.flush(flushCtx, batch)
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (c *Collector) Wait() {
	<-c.done
}

func (c *Collector) accept(ctx context.Context, batch []kafka.Message, event SearchEvent) []kafka.Message {
	if c.sink == nil {
		if c.recorder != nil {
			c.recorder.Record(event)
		}
		return batch
	}
	batch = append(batch, kafka.Message{Key: event.Fingerprint, Value: event})
	if len(batch) >= c.opts.BatchSize {
		return c.flush(ctx, batch)
	}
	return batch
}

// flush publishes batch. On failure the events are kept for the next flush,
// up to three batches, beyond which the oldest are dropped.
func (c *Collector) flush(ctx context.Context, batch []kafka.Message) []kafka.Message {
	if len(batch) == 0 || c.sink == nil {
		return batch
	}
	if err := c.sink.Publish(ctx, batch...); err != nil {
		limit := c.opts.BatchSize * 3
		if len(batch) > limit {
			dropped := len(batch) - limit
			batch = batch[dropped:]
			c.logger.Warn("analytics events dropped after failed flushes", "dropped", dropped)
		}
		c.logger.Error("analytics flush failed", "events", len(batch), "error", err)
		return batch
	}
	c.logger.Debug("analytics batch flushed", "events", len(batch))
	return batch[:0]
}
