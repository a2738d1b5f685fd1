package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/iconverter/internal/config"
	"github.com/aliskhannn/iconverter/internal/model"
)

// Producer publishes submitted batches to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(
	cfg *config.Kafka,
	s retry.Strategy,
) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	// Batch IDs pick the partition; all replicas must acknowledge.
	producer.Writer.Balancer = &kafka.Hash{}
	producer.Writer.RequiredAcks = kafka.RequireAll
	producer.Writer.AllowAutoTopicCreation = true

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Produce serializes the Batch to JSON and sends it to Kafka.
// The Batch ID is used as the message key.
func (p *Producer) Produce(ctx context.Context, b model.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	if err = p.Client.SendWithRetry(ctx, p.strategy, []byte(b.ID.String()), data); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	return nil
}
