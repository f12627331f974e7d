// Package kafka wraps segmentio/kafka-go with a JSON producer and a
// commit-after-handle consumer loop.
package kafka

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
)

// Handler processes one message. A returned error leaves the message
// uncommitted.
type Handler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	logger  *slog.Logger
}

// hostname is replaced in tests.
var hostname = os.Hostname

// InstanceGroup returns a consumer group owned by this process, so each
// replica receives every message on a topic instead of a share of its
// partitions. The group is base plus the host name, or plus a random suffix
// when the host name is unavailable.
func InstanceGroup(base string) string {
	if host, err := hostname(); err == nil && host != "" {
		return base + "-" + host
	}
	var b [4]byte
	rand.Read(b[:])
	return base + "-" + hex.EncodeToString(b[:])
}

// NewConsumer joins cfg.ConsumerGroup on topic. New groups start from the
// latest offset so a fresh searcher does not replay old builds.
func NewConsumer(cfg config.KafkaConfig, topic string, handler Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("handler failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
