package item

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aliskhannn/iconverter/internal/model"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrDuplicateItem = errors.New("item already exists")
)

// Repository is the in-memory, ordered store of ingested items.
// Reads and writes may come from different goroutines.
type Repository struct {
	mu    sync.RWMutex
	order []string
	items map[string]*model.Item
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{items: make(map[string]*model.Item)}
}

// Add appends an item to the end of the store.
func (r *Repository) Add(it model.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[it.ID]; ok {
		return fmt.Errorf("add %s: %w", it.ID, ErrDuplicateItem)
	}

	stored := it
	r.items[it.ID] = &stored
	r.order = append(r.order, it.ID)

	return nil
}

// Get returns a copy of the item with the given id.
func (r *Repository) Get(id string) (model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}

	return *it, nil
}

// List returns copies of all items in ingestion order.
func (r *Repository) List() []model.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Item, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.items[id])
	}

	return out
}

// SetSelected updates the selection flag of an item.
func (r *Repository) SetSelected(id string, selected bool) error {
	return r.update(id, func(it *model.Item) {
		it.Selected = selected
	})
}

// SetOutput stores the processing result of an item.
func (r *Repository) SetOutput(id string, data []byte, mediaType string) error {
	return r.update(id, func(it *model.Item) {
		it.Output = data
		it.OutputType = mediaType
	})
}

// SetPreview swaps the preview handle of an item and returns the previous
// one so that the caller can release it.
func (r *Repository) SetPreview(id, key, mediaType string) (string, error) {
	var prev string
	err := r.update(id, func(it *model.Item) {
		prev = it.Preview
		it.Preview = key
		it.PreviewType = mediaType
	})

	return prev, err
}

func (r *Repository) update(id string, fn func(it *model.Item)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return ErrItemNotFound
	}

	fn(it)

	return nil
}
