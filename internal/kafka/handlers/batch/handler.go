package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/iconverter/internal/model"
)

// service defines the interface for running submitted batches.
type service interface {
	RunBatch(ctx context.Context, b model.Batch) error
}

// Handler handles Kafka messages carrying submitted batches.
type Handler struct {
	service service
}

// NewHandler creates a new handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Handle unmarshals the batch and runs it. A batch that fails while
// processing is recorded as failed by the service and the message counts as
// handled; only malformed messages are reported as errors.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var b model.Batch
	if err := json.Unmarshal(msg.Value, &b); err != nil {
		return fmt.Errorf("unmarshal batch: %w", err)
	}

	if err := h.service.RunBatch(ctx, b); err != nil {
		zlog.Logger.Warn().
			Err(err).
			Str("batch_id", b.ID.String()).
			Msg("batch finished with failure")
		return nil
	}

	zlog.Logger.Info().
		Str("batch_id", b.ID.String()).
		Msg("batch processed")

	return nil
}
