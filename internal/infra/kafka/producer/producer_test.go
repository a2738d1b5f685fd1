package producer

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/iconverter/internal/config"
)

func TestNew_WriterSettings(t *testing.T) {
	cfg := &config.Kafka{Brokers: []string{"localhost:9092"}, Topic: "batches", GroupID: "iconverter"}

	p := New(cfg, retry.Strategy{Attempts: 2, Delay: time.Millisecond, Backoff: 1})
	require.NotNil(t, p.Client)
	require.NotNil(t, p.Client.Writer)
	t.Cleanup(func() { _ = p.Client.Close() })

	w := p.Client.Writer
	assert.Equal(t, "batches", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.True(t, w.AllowAutoTopicCreation)
}
