package batch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/iconverter/internal/model"
)

var ErrBatchNotFound = errors.New("batch not found")

// Repository keeps batch status records in memory.
type Repository struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]model.Batch
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{batches: make(map[uuid.UUID]model.Batch)}
}

// Save inserts or replaces a batch record.
func (r *Repository) Save(b model.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches[b.ID] = b
}

// Get returns the batch with the given id.
func (r *Repository) Get(id uuid.UUID) (model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[id]
	if !ok {
		return model.Batch{}, ErrBatchNotFound
	}

	return b, nil
}

// MarkRunning moves a batch into the running state.
func (r *Repository) MarkRunning(id uuid.UUID) error {
	return r.update(id, func(b *model.Batch) {
		b.Status = model.BatchRunning
	})
}

// MarkProgress records how many items of the batch are done.
func (r *Repository) MarkProgress(id uuid.UUID, processed int) error {
	return r.update(id, func(b *model.Batch) {
		b.Processed = processed
	})
}

// MarkFinished stores the terminal state of a batch. A nil cause means success.
func (r *Repository) MarkFinished(id uuid.UUID, cause error) error {
	return r.update(id, func(b *model.Batch) {
		now := time.Now()
		b.FinishedAt = &now
		if cause != nil {
			b.Status = model.BatchFailed
			b.Error = cause.Error()
			return
		}
		b.Status = model.BatchDone
	})
}

func (r *Repository) update(id uuid.UUID, fn func(b *model.Batch)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[id]
	if !ok {
		return ErrBatchNotFound
	}

	fn(&b)
	r.batches[id] = b

	return nil
}
