package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/iconverter/internal/config"
)

// fetchBackoff is the pause after a fetch that failed all its retries.
const fetchBackoff = 500 * time.Millisecond

// batchHandler defines the interface for handling batch messages.
type batchHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// Consumer reads batch messages from Kafka and runs them one by one.
type Consumer struct {
	Client   *wbfkafka.Consumer
	handler  batchHandler
	cfg      *config.Kafka
	strategy retry.Strategy
}

// New creates a new Consumer.
// - cfg: Kafka configuration struct
// - s: retry strategy
// - h: handler for batch messages
func New(
	cfg *config.Kafka,
	s retry.Strategy,
	h batchHandler,
) *Consumer {
	return &Consumer{
		Client:   wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID),
		handler:  h,
		cfg:      cfg,
		strategy: s,
	}
}

// Consume handles one message at a time until ctx is canceled. An offset is
// committed only after its batch handler returned.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("batch consumer started")

	for ctx.Err() == nil {
		msg, ok := c.next(ctx)
		if !ok {
			continue
		}
		c.settle(ctx, msg)
	}

	zlog.Logger.Info().Str("topic", c.cfg.Topic).Msg("batch consumer stopped")
}

// next fetches the following message. It reports false when nothing was
// fetched, pausing first unless the consumer is shutting down.
func (c *Consumer) next(ctx context.Context) (kafka.Message, bool) {
	var msg kafka.Message
	err := retry.Do(func() (err error) {
		msg, err = c.Client.Fetch(ctx)
		return err
	}, c.strategy)
	if err == nil {
		return msg, true
	}
	if ctx.Err() != nil {
		return kafka.Message{}, false
	}

	zlog.Logger.Error().Err(err).Str("topic", c.cfg.Topic).Msg("fetch failed")

	select {
	case <-ctx.Done():
	case <-time.After(fetchBackoff):
	}

	return kafka.Message{}, false
}

// settle runs the handler for msg and commits it on success. A message the
// handler rejects stays uncommitted.
func (c *Consumer) settle(ctx context.Context, msg kafka.Message) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		zlog.Logger.Error().Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("batch message rejected")
		return
	}

	err := retry.Do(func() error {
		return c.Client.Commit(ctx, msg)
	}, c.strategy)
	if err != nil {
		zlog.Logger.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
		return
	}

	zlog.Logger.Debug().
		Str("key", string(msg.Key)).
		Int64("offset", msg.Offset).
		Msg("batch message committed")
}
