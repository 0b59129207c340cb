package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rangesearch/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Record is a document to publish. Value is JSON-encoded.
type Record struct {
	Key   string
	Value any
}

type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DocumentTopic,
			Balancer:     &kafka.Hash{},
			BatchSize:    500,
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  3,
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger.WithComponent("kafka-producer").With("topic", cfg.DocumentTopic),
	}
}

// Publish writes records in one synchronous batch.
func (p *Producer) Publish(ctx context.Context, records ...Record) error {
	msgs, err := encode(records)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("publishing batch failed", "count", len(msgs), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("batch published", "count", len(msgs))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(records []Record) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding record %q: %w", r.Key, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(r.Key), Value: value})
	}
	return msgs, nil
}
