package item

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/iconverter/internal/api/respond"
	"github.com/aliskhannn/iconverter/internal/archive"
	"github.com/aliskhannn/iconverter/internal/config"
	"github.com/aliskhannn/iconverter/internal/model"
	batchrepo "github.com/aliskhannn/iconverter/internal/repository/batch"
	itemrepo "github.com/aliskhannn/iconverter/internal/repository/item"
	itemsvc "github.com/aliskhannn/iconverter/internal/service/item"
	"github.com/aliskhannn/iconverter/internal/storage"
)

// service defines the interface for item-related operations.
type service interface {
	Ingest(ctx context.Context, files []model.SourceFile) ([]model.Item, []itemsvc.Skipped, error)
	List() []model.Item
	Get(id string) (model.Item, error)
	SetSelected(id string, selected bool) (model.Item, error)
	Preview(ctx context.Context, id string) (io.ReadCloser, string, error)
	Output(id string) (itemsvc.Download, error)
	SubmitImages(ctx context.Context, opts model.ImageOptions) (model.Batch, error)
	SubmitPDFs(ctx context.Context, opts model.PDFOptions) (model.Batch, error)
	Batch(id uuid.UUID) (model.Batch, error)
	Archive(ctx context.Context, w io.Writer) error
}

// Handler provides HTTP handlers for item, batch and archive endpoints.
// Controls missing from a batch request fall back to the configured defaults.
type Handler struct {
	service         service
	defaults        config.Processing
	maxUploadMemory int64
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service, defaults config.Processing, maxUploadMemory int64) *Handler {
	return &Handler{
		service:         s,
		defaults:        defaults,
		maxUploadMemory: maxUploadMemory,
	}
}

// UploadResult is the body returned after ingestion.
type UploadResult struct {
	Items   []model.Item      `json:"items"`
	Skipped []itemsvc.Skipped `json:"skipped"`
}

// SelectRequest toggles the selection flag of an item.
type SelectRequest struct {
	Selected *bool `json:"selected"`
}

// ImageBatchRequest carries the image controls. Nil fields use defaults.
type ImageBatchRequest struct {
	Quality *int    `json:"quality"`
	Format  *string `json:"format"`
	Resize  *bool   `json:"resize"`
	MaxSide *int    `json:"max_side"`
}

// PDFBatchRequest carries the PDF controls. Nil fields use defaults.
type PDFBatchRequest struct {
	Quality *int  `json:"quality"`
	Resize  *bool `json:"resize"`
	MaxSide *int  `json:"max_side"`
}

// Upload handles the multipart upload of one or more files under the
// "files" field and registers them as items.
func (h *Handler) Upload(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(h.maxUploadMemory); err != nil {
		zlog.Logger.Err(err).Msg("failed to parse multipart form")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	headers := c.Request.MultipartForm.File["files"]
	if len(headers) == 0 {
		zlog.Logger.Warn().Msg("no files provided")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("files field is required"))
		return
	}

	files := make([]model.SourceFile, 0, len(headers))
	for _, header := range headers {
		f, err := readPart(header)
		if err != nil {
			zlog.Logger.Err(err).Str("name", header.Filename).Msg("failed to read the file")
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read %q", header.Filename))
			return
		}
		files = append(files, f)
	}

	items, skipped, err := h.service.Ingest(c.Request.Context(), files)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to ingest files")
		h.fail(c, err)
		return
	}

	if items == nil {
		items = []model.Item{}
	}
	if skipped == nil {
		skipped = []itemsvc.Skipped{}
	}

	respond.Created(c, UploadResult{Items: items, Skipped: skipped})
}

func readPart(header *multipart.FileHeader) (model.SourceFile, error) {
	file, err := header.Open()
	if err != nil {
		return model.SourceFile{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return model.SourceFile{}, err
	}

	return model.SourceFile{
		Name:      header.Filename,
		Size:      header.Size,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}, nil
}

// List returns every item in ingestion order.
func (h *Handler) List(c *ginext.Context) {
	items := h.service.List()
	if items == nil {
		items = []model.Item{}
	}

	respond.OK(c, items)
}

// Get returns the metadata of one item.
func (h *Handler) Get(c *ginext.Context) {
	it, err := h.service.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, it)
}

// Select sets the selection flag of an item.
func (h *Handler) Select(c *ginext.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Selected == nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("selected field is required"))
		return
	}

	it, err := h.service.SetSelected(c.Param("id"), *req.Selected)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, it)
}

// Preview serves the current preview bytes of an item.
func (h *Handler) Preview(c *ginext.Context) {
	reader, mediaType, err := h.service.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer reader.Close()

	// The preview is swapped once the item is processed.
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	respond.Stream(c, http.StatusOK, mediaType, reader)
}

// Output serves the processed bytes of an item as a download.
func (h *Handler) Output(c *ginext.Context) {
	d, err := h.service.Output(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Attachment(c, d.Name, d.MediaType, d.Data)
}

// CompressImages submits a batch over the selected images.
func (h *Handler) CompressImages(c *ginext.Context) {
	var req ImageBatchRequest
	if err := bindOptional(c, &req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	d := h.defaults.Image
	opts, err := model.NewImageOptions(
		valueOr(req.Quality, d.Quality),
		valueOr(req.Format, d.Format),
		valueOr(req.Resize, d.Resize),
		valueOr(req.MaxSide, d.MaxSide),
	)
	if err != nil {
		h.fail(c, err)
		return
	}

	b, err := h.service.SubmitImages(c.Request.Context(), opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Accepted(c, b)
}

// OptimizePDFs submits a batch over the selected PDFs.
func (h *Handler) OptimizePDFs(c *ginext.Context) {
	var req PDFBatchRequest
	if err := bindOptional(c, &req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	d := h.defaults.PDF
	opts, err := model.NewPDFOptions(
		valueOr(req.Quality, d.Quality),
		valueOr(req.Resize, d.Resize),
		valueOr(req.MaxSide, d.MaxSide),
	)
	if err != nil {
		h.fail(c, err)
		return
	}

	b, err := h.service.SubmitPDFs(c.Request.Context(), opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Accepted(c, b)
}

// Batch returns the status of a batch.
func (h *Handler) Batch(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	b, err := h.service.Batch(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, b)
}

// Archive serves a ZIP of every processed selected item.
func (h *Handler) Archive(c *ginext.Context) {
	buf := new(bytes.Buffer)
	if err := h.service.Archive(c.Request.Context(), buf); err != nil {
		h.fail(c, err)
		return
	}

	respond.Attachment(c, archive.DefaultName, "application/zip", buf.Bytes())
}

// fail maps service errors to status codes.
func (h *Handler) fail(c *ginext.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, model.ErrInvalidOptions),
		errors.Is(err, itemsvc.ErrNothingSelected),
		errors.Is(err, archive.ErrEmpty):
		status = http.StatusBadRequest
	case errors.Is(err, itemrepo.ErrItemNotFound),
		errors.Is(err, batchrepo.ErrBatchNotFound),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, itemsvc.ErrNoOutput):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		zlog.Logger.Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	respond.Fail(c, status, err)
}

// bindOptional decodes a JSON body when there is one.
func bindOptional(c *ginext.Context, dst interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}

	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}

	return *p
}
