// Package local carries batches through an in-process channel to a single
// consumer goroutine.
package local

import (
	"context"
	"errors"
	"sync"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/iconverter/internal/model"
)

// ErrClosed is returned when producing into a stopped queue.
var ErrClosed = errors.New("queue closed")

// runner executes one batch to completion.
type runner interface {
	RunBatch(ctx context.Context, b model.Batch) error
}

// Queue is a buffered FIFO of batches.
type Queue struct {
	batches chan model.Batch
	done    chan struct{}
	once    sync.Once
}

// New creates a Queue holding up to buffer pending batches.
func New(buffer int) *Queue {
	if buffer < 1 {
		buffer = 1
	}

	return &Queue{
		batches: make(chan model.Batch, buffer),
		done:    make(chan struct{}),
	}
}

// Produce enqueues a batch. It blocks while the buffer is full.
func (q *Queue) Produce(ctx context.Context, b model.Batch) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.batches <- b:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs queued batches one at a time until ctx is canceled or the
// queue is closed. A failed batch is logged and the next one starts.
func (q *Queue) Consume(ctx context.Context, wg *sync.WaitGroup, r runner) {
	defer wg.Done()

	zlog.Logger.Info().Msg("starting local consumer")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		case <-q.done:
			zlog.Logger.Info().Msg("queue closed, stopping consumer")
			return
		case b := <-q.batches:
			if err := r.RunBatch(ctx, b); err != nil {
				zlog.Logger.Err(err).
					Str("batch_id", b.ID.String()).
					Msg("failed to run batch")
				continue
			}

			zlog.Logger.Info().
				Str("batch_id", b.ID.String()).
				Msg("batch handled successfully")
		}
	}
}

// Close stops the queue. Pending batches are dropped.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
