// Package kafka carries documents between the load generator and the
// indexer over a segmentio/kafka-go topic.
package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Message is one record read from the topic.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// Handler processes one message. A message whose handler fails is logged
// and its offset still committed, so a malformed document cannot stall the
// partition.
type Handler func(ctx context.Context, msg Message) error

type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, handler Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.DocumentTopic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  logger.WithComponent("kafka-consumer").With("topic", cfg.DocumentTopic),
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
			c.logger.Error("fetching message failed", "error", err)
			continue
		}
		m := Message{Key: msg.Key, Value: msg.Value, Partition: msg.Partition, Offset: msg.Offset}
		if err := c.handler(ctx, m); err != nil {
			c.logger.Warn("dropping message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("committing offset failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}
