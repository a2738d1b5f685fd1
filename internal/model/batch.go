package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchPending BatchStatus = "pending"
	BatchRunning BatchStatus = "running"
	BatchDone    BatchStatus = "done"
	BatchFailed  BatchStatus = "failed"
)

// Batch is an ordered task list over items of one kind, sent to the queue
// and executed by a single consumer.
type Batch struct {
	ID         uuid.UUID     `json:"id"`
	Kind       Kind          `json:"kind"`
	ItemIDs    []string      `json:"item_ids"`
	Image      *ImageOptions `json:"image,omitempty"`
	PDF        *PDFOptions   `json:"pdf,omitempty"`
	Status     BatchStatus   `json:"status"`
	Processed  int           `json:"processed"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Finished reports whether the batch reached a terminal state.
func (b Batch) Finished() bool {
	return b.Status == BatchDone || b.Status == BatchFailed
}
