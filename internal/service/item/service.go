package item

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/iconverter/internal/archive"
	"github.com/aliskhannn/iconverter/internal/model"
	"github.com/aliskhannn/iconverter/internal/repository/batch"
)

const previewDir = "previews"

var (
	ErrNothingSelected = errors.New("no selected items of this kind")
	ErrNoOutput        = errors.New("item has not been processed")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrTooManyPages    = errors.New("pdf exceeds the page limit")
)

// itemRepository stores ingested items.
type itemRepository interface {
	Add(it model.Item) error
	Get(id string) (model.Item, error)
	List() []model.Item
	SetSelected(id string, selected bool) error
	SetOutput(id string, data []byte, mediaType string) error
	SetPreview(id, key, mediaType string) (string, error)
}

// batchRepository stores batch status records.
type batchRepository interface {
	Save(b model.Batch)
	Get(id uuid.UUID) (model.Batch, error)
	MarkRunning(id uuid.UUID) error
	MarkProgress(id uuid.UUID, processed int) error
	MarkFinished(id uuid.UUID, cause error) error
}

// blobStorage keeps preview blobs (local filesystem or S3).
type blobStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// processor runs the image and PDF routines.
type processor interface {
	Process(ctx context.Context, it model.Item, b model.Batch) (model.Output, error)
	PageCount(data []byte) (int, error)
	Placeholder(name string, size int64, pages int) ([]byte, error)
}

// producer enqueues batches for the single consumer.
type producer interface {
	Produce(ctx context.Context, b model.Batch) error
}

// Limits bound ingested files. Zero disables a limit.
type Limits struct {
	MaxFileSize int64
	MaxPDFPages int
}

// Skipped describes a file that was refused at ingestion.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Download is an item output ready to be served.
type Download struct {
	Name      string
	MediaType string
	Data      []byte
}

// Service provides the business logic around items: ingestion, selection,
// batch scheduling and execution, downloads and archives.
type Service struct {
	items     itemRepository
	batches   batchRepository
	storage   blobStorage
	processor processor
	producer  producer
	limits    Limits
}

// NewService creates a new Service. The producer may be nil when batches
// are only run synchronously.
func NewService(ir itemRepository, br batchRepository, bs blobStorage, proc processor, p producer, l Limits) *Service {
	return &Service{
		items:     ir,
		batches:   br,
		storage:   bs,
		processor: proc,
		producer:  p,
		limits:    l,
	}
}

// Ingest registers the accepted files as new selected items in the order
// given. Files of unsupported types are ignored; files breaking a limit are
// reported in the skipped list.
func (s *Service) Ingest(ctx context.Context, files []model.SourceFile) ([]model.Item, []Skipped, error) {
	var (
		added   []model.Item
		skipped []Skipped
	)

	for _, f := range files {
		if f.Size == 0 {
			f.Size = int64(len(f.Data))
		}
		f.MediaType = resolveMediaType(f.MediaType, f.Data)

		kind, ok := model.KindOf(f.MediaType)
		if !ok {
			zlog.Logger.Debug().
				Str("name", f.Name).
				Str("media_type", f.MediaType).
				Msg("ignoring unsupported file")
			continue
		}

		if s.limits.MaxFileSize > 0 && f.Size > s.limits.MaxFileSize {
			skipped = append(skipped, Skipped{Name: f.Name, Reason: ErrFileTooLarge.Error()})
			continue
		}

		it := model.Item{
			ID:        uuid.NewString(),
			Source:    f,
			Kind:      kind,
			Selected:  true,
			CreatedAt: time.Now(),
		}

		preview, previewType := f.Data, f.MediaType
		if kind == model.KindPDF {
			pages, err := s.processor.PageCount(f.Data)
			if err != nil {
				// Kept so that the failure surfaces when the batch runs.
				zlog.Logger.Warn().Err(err).Str("name", f.Name).Msg("failed to count pdf pages")
			}
			if s.limits.MaxPDFPages > 0 && pages > s.limits.MaxPDFPages {
				skipped = append(skipped, Skipped{Name: f.Name, Reason: ErrTooManyPages.Error()})
				continue
			}
			it.Pages = pages

			preview, err = s.processor.Placeholder(f.Name, f.Size, pages)
			if err != nil {
				return added, skipped, fmt.Errorf("ingest %q: render placeholder: %w", f.Name, err)
			}
			previewType = "image/png"
		}

		key, err := s.storage.Save(ctx, previewDir, it.ID, bytes.NewReader(preview))
		if err != nil {
			return added, skipped, fmt.Errorf("ingest %q: save preview: %w", f.Name, err)
		}
		it.Preview, it.PreviewType = key, previewType

		if err := s.items.Add(it); err != nil {
			return added, skipped, fmt.Errorf("ingest %q: %w", f.Name, err)
		}

		zlog.Logger.Info().
			Str("item_id", it.ID).
			Str("kind", string(kind)).
			Str("name", f.Name).
			Int64("bytes", f.Size).
			Msg("item ingested")

		added = append(added, it)
	}

	return added, skipped, nil
}

// resolveMediaType strips parameters from the declared type and sniffs the
// content when the declaration carries no information.
func resolveMediaType(declared string, data []byte) string {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(declared)), ";")
	mt = strings.TrimSpace(mt)
	if mt == "" || mt == "application/octet-stream" {
		mt, _, _ = strings.Cut(mimetype.Detect(data).String(), ";")
	}

	return mt
}

// List returns all items in ingestion order.
func (s *Service) List() []model.Item {
	return s.items.List()
}

// Get returns one item.
func (s *Service) Get(id string) (model.Item, error) {
	return s.items.Get(id)
}

// SetSelected toggles whether an item takes part in batches and archives.
func (s *Service) SetSelected(id string, selected bool) (model.Item, error) {
	if err := s.items.SetSelected(id, selected); err != nil {
		return model.Item{}, err
	}

	return s.items.Get(id)
}

// SubmitImages enqueues a batch over the selected images.
func (s *Service) SubmitImages(ctx context.Context, opts model.ImageOptions) (model.Batch, error) {
	if err := opts.Validate(); err != nil {
		return model.Batch{}, err
	}

	b, err := s.newBatch(model.KindImage, func(b *model.Batch) { b.Image = &opts })
	if err != nil {
		return model.Batch{}, err
	}

	return s.enqueue(ctx, b)
}

// SubmitPDFs enqueues a batch over the selected PDFs.
func (s *Service) SubmitPDFs(ctx context.Context, opts model.PDFOptions) (model.Batch, error) {
	if err := opts.Validate(); err != nil {
		return model.Batch{}, err
	}

	b, err := s.newBatch(model.KindPDF, func(b *model.Batch) { b.PDF = &opts })
	if err != nil {
		return model.Batch{}, err
	}

	return s.enqueue(ctx, b)
}

// ProcessImages runs a batch over the selected images and waits for it.
func (s *Service) ProcessImages(ctx context.Context, opts model.ImageOptions) (model.Batch, error) {
	if err := opts.Validate(); err != nil {
		return model.Batch{}, err
	}

	b, err := s.newBatch(model.KindImage, func(b *model.Batch) { b.Image = &opts })
	if err != nil {
		return model.Batch{}, err
	}

	return s.runNow(ctx, b)
}

// ProcessPDFs runs a batch over the selected PDFs and waits for it.
func (s *Service) ProcessPDFs(ctx context.Context, opts model.PDFOptions) (model.Batch, error) {
	if err := opts.Validate(); err != nil {
		return model.Batch{}, err
	}

	b, err := s.newBatch(model.KindPDF, func(b *model.Batch) { b.PDF = &opts })
	if err != nil {
		return model.Batch{}, err
	}

	return s.runNow(ctx, b)
}

// Batch returns the status record of a batch.
func (s *Service) Batch(id uuid.UUID) (model.Batch, error) {
	return s.batches.Get(id)
}

// newBatch snapshots the selected items of kind into a pending batch.
func (s *Service) newBatch(kind model.Kind, withOptions func(b *model.Batch)) (model.Batch, error) {
	var ids []string
	for _, it := range s.items.List() {
		if it.Selected && it.Kind == kind {
			ids = append(ids, it.ID)
		}
	}

	if len(ids) == 0 {
		return model.Batch{}, fmt.Errorf("%w: %s", ErrNothingSelected, kind)
	}

	b := model.Batch{
		ID:        uuid.New(),
		Kind:      kind,
		ItemIDs:   ids,
		Status:    model.BatchPending,
		CreatedAt: time.Now(),
	}
	withOptions(&b)
	s.batches.Save(b)

	return b, nil
}

func (s *Service) enqueue(ctx context.Context, b model.Batch) (model.Batch, error) {
	if s.producer == nil {
		return s.runNow(ctx, b)
	}

	if err := s.producer.Produce(ctx, b); err != nil {
		err = fmt.Errorf("enqueue batch %s: %w", b.ID, err)
		if markErr := s.batches.MarkFinished(b.ID, err); markErr != nil {
			zlog.Logger.Err(markErr).Str("batch_id", b.ID.String()).Msg("failed to mark batch")
		}
		return model.Batch{}, err
	}

	zlog.Logger.Info().
		Str("batch_id", b.ID.String()).
		Str("kind", string(b.Kind)).
		Int("items", len(b.ItemIDs)).
		Msg("batch enqueued")

	return b, nil
}

func (s *Service) runNow(ctx context.Context, b model.Batch) (model.Batch, error) {
	runErr := s.RunBatch(ctx, b)

	done, err := s.batches.Get(b.ID)
	if err != nil {
		return model.Batch{}, err
	}

	return done, runErr
}

// RunBatch processes the items of a batch strictly in order. The first
// failure stops the batch; outputs of items completed before it are kept.
func (s *Service) RunBatch(ctx context.Context, b model.Batch) error {
	existing, err := s.batches.Get(b.ID)
	switch {
	case errors.Is(err, batch.ErrBatchNotFound):
		s.batches.Save(b)
	case err != nil:
		return fmt.Errorf("run batch %s: %w", b.ID, err)
	case existing.Finished():
		// Redelivered message.
		zlog.Logger.Debug().Str("batch_id", b.ID.String()).Msg("batch already finished")
		return nil
	}

	if err := s.batches.MarkRunning(b.ID); err != nil {
		return fmt.Errorf("run batch %s: %w", b.ID, err)
	}

	zlog.Logger.Info().
		Str("batch_id", b.ID.String()).
		Str("kind", string(b.Kind)).
		Int("items", len(b.ItemIDs)).
		Msg("batch started")

	for i, id := range b.ItemIDs {
		if err := s.runItem(ctx, b, id); err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("batch_id", b.ID.String()).
				Str("item_id", id).
				Int("processed", i).
				Msg("batch failed")
			if markErr := s.batches.MarkFinished(b.ID, err); markErr != nil {
				zlog.Logger.Err(markErr).Str("batch_id", b.ID.String()).Msg("failed to mark batch")
			}
			return err
		}

		if err := s.batches.MarkProgress(b.ID, i+1); err != nil {
			zlog.Logger.Err(err).Str("batch_id", b.ID.String()).Msg("failed to record progress")
		}
	}

	if err := s.batches.MarkFinished(b.ID, nil); err != nil {
		return fmt.Errorf("finish batch %s: %w", b.ID, err)
	}

	zlog.Logger.Info().Str("batch_id", b.ID.String()).Msg("batch done")

	return nil
}

func (s *Service) runItem(ctx context.Context, b model.Batch, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	it, err := s.items.Get(id)
	if err != nil {
		return fmt.Errorf("item %s: %w", id, err)
	}

	start := time.Now()
	out, err := s.processor.Process(ctx, it, b)
	if err != nil {
		return fmt.Errorf("%s: %w", it.Source.Name, err)
	}

	if err := s.items.SetOutput(id, out.Data, out.MediaType); err != nil {
		return fmt.Errorf("item %s: %w", id, err)
	}

	if it.Kind == model.KindImage {
		s.replacePreview(ctx, it, b.ID, out)
	}

	zlog.Logger.Info().
		Str("item_id", id).
		Str("batch_id", b.ID.String()).
		Int64("source_bytes", it.Source.Size).
		Int("bytes", len(out.Data)).
		Int("pages", out.Pages).
		Dur("took", time.Since(start)).
		Msg("item processed")

	return nil
}

// replacePreview shows the processed image in place of the source and
// releases the superseded preview blob. Failures are only logged.
func (s *Service) replacePreview(ctx context.Context, it model.Item, batchID uuid.UUID, out model.Output) {
	key, err := s.storage.Save(ctx, previewDir, it.ID+"-"+batchID.String(), bytes.NewReader(out.Data))
	if err != nil {
		zlog.Logger.Err(err).Str("item_id", it.ID).Msg("failed to save preview")
		return
	}

	prev, err := s.items.SetPreview(it.ID, key, out.MediaType)
	if err != nil {
		zlog.Logger.Err(err).Str("item_id", it.ID).Msg("failed to swap preview")
		return
	}

	if prev == "" || prev == key {
		return
	}

	if err := s.storage.Delete(ctx, prev); err != nil {
		zlog.Logger.Warn().Err(err).Str("key", prev).Msg("failed to release preview")
	}
}

// Output returns the processed bytes of an item with its download name.
func (s *Service) Output(id string) (Download, error) {
	it, err := s.items.Get(id)
	if err != nil {
		return Download{}, err
	}

	if !it.Processed() {
		return Download{}, fmt.Errorf("%s: %w", it.Source.Name, ErrNoOutput)
	}

	return Download{
		Name:      it.OutputName(),
		MediaType: it.OutputType,
		Data:      it.Output,
	}, nil
}

// Preview opens the preview blob of an item and returns its media type.
func (s *Service) Preview(ctx context.Context, id string) (io.ReadCloser, string, error) {
	it, err := s.items.Get(id)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.storage.Load(ctx, it.Preview)
	if err != nil {
		return nil, "", fmt.Errorf("load preview of %s: %w", id, err)
	}

	return rc, it.PreviewType, nil
}

// Archive writes a ZIP of every selected item that has an output.
func (s *Service) Archive(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var entries []archive.Entry
	for _, it := range s.items.List() {
		if !it.Selected || !it.Processed() {
			continue
		}
		entries = append(entries, archive.Entry{
			Name:     it.OutputName(),
			Data:     it.Output,
			Modified: it.CreatedAt,
		})
	}

	return archive.Write(w, entries)
}
