package item_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/iconverter/internal/api/handlers/item"
	"github.com/aliskhannn/iconverter/internal/api/router"
	"github.com/aliskhannn/iconverter/internal/config"
	"github.com/aliskhannn/iconverter/internal/model"
	"github.com/aliskhannn/iconverter/internal/processor"
	batchrepo "github.com/aliskhannn/iconverter/internal/repository/batch"
	itemrepo "github.com/aliskhannn/iconverter/internal/repository/item"
	itemsvc "github.com/aliskhannn/iconverter/internal/service/item"
	"github.com/aliskhannn/iconverter/internal/storage/file"
)

type envelope struct {
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

var defaults = config.Processing{
	Image: config.ImageDefaults{Quality: 80, Format: "auto", MaxSide: 1600},
	PDF:   config.PDFDefaults{Quality: 70, MaxSide: 2048},
}

func newRouter(t *testing.T) *ginext.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// Without a producer batches run before the submit call returns.
	svc := itemsvc.NewService(
		itemrepo.NewRepository(),
		batchrepo.NewRepository(),
		file.NewStorage(t.TempDir()),
		processor.New(),
		nil,
		itemsvc.Limits{},
	)

	return router.Setup(item.NewHandler(svc, defaults, 32<<20))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	return buf.Bytes()
}

func do(t *testing.T, r http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func upload(t *testing.T, r http.Handler, files map[string][]byte, order ...string) *httptest.ResponseRecorder {
	t.Helper()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	for _, name := range order {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return do(t, r, http.MethodPost, "/api/items", body.Bytes(), mw.FormDataContentType())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, result interface{}) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if result != nil {
		require.NoError(t, json.Unmarshal(env.Result, result))
	}

	return env
}

func TestItemsFlow(t *testing.T) {
	r := newRouter(t)

	rec := upload(t, r, map[string][]byte{
		"photo.png": pngBytes(t, 400, 300),
		"notes.txt": []byte("just some text"),
	}, "photo.png", "notes.txt")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var uploaded item.UploadResult
	decode(t, rec, &uploaded)
	require.Len(t, uploaded.Items, 1)
	assert.Empty(t, uploaded.Skipped)

	it := uploaded.Items[0]
	assert.Equal(t, "photo.png", it.Source.Name)
	assert.Equal(t, "image/png", it.Source.MediaType)
	assert.True(t, it.Selected)

	rec = do(t, r, http.MethodGet, "/api/items", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.Item
	decode(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, it.ID, listed[0].ID)

	rec = do(t, r, http.MethodGet, "/api/items/"+it.ID+"/preview", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = do(t, r, http.MethodPost, "/api/batches/images",
		[]byte(`{"quality": 80, "format": "jpeg", "resize": true, "max_side": 100}`), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var b model.Batch
	decode(t, rec, &b)
	assert.Equal(t, []string{it.ID}, b.ItemIDs)

	rec = do(t, r, http.MethodGet, "/api/batches/"+b.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &b)
	assert.Equal(t, model.BatchDone, b.Status)
	assert.Equal(t, 1, b.Processed)

	rec = do(t, r, http.MethodGet, "/api/items/"+it.ID+"/output", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="photo.png"`, rec.Header().Get("Content-Disposition"))
	cfg, format, err := image.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 75, cfg.Height)

	rec = do(t, r, http.MethodGet, "/api/items/"+it.ID+"/preview", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = do(t, r, http.MethodGet, "/api/archive", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "iconverter-output.zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "photo.png", zr.File[0].Name)
}

func TestDefaultsApplyToEmptyBody(t *testing.T) {
	r := newRouter(t)

	rec := upload(t, r, map[string][]byte{"a.png": pngBytes(t, 20, 10)}, "a.png")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/batches/images", nil, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var b model.Batch
	decode(t, rec, &b)
	require.NotNil(t, b.Image)
	assert.Equal(t, 0.8, b.Image.Quality)
	assert.Equal(t, model.FormatAuto, b.Image.Format)
	assert.Zero(t, b.Image.MaxSide)
}

func TestSelection(t *testing.T) {
	r := newRouter(t)

	rec := upload(t, r, map[string][]byte{"a.png": pngBytes(t, 20, 10)}, "a.png")
	require.Equal(t, http.StatusCreated, rec.Code)
	var uploaded item.UploadResult
	decode(t, rec, &uploaded)
	id := uploaded.Items[0].ID

	rec = do(t, r, http.MethodPatch, "/api/items/"+id, []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPatch, "/api/items/"+id, []byte(`{"selected": false}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	var it model.Item
	decode(t, rec, &it)
	assert.False(t, it.Selected)

	rec = do(t, r, http.MethodPost, "/api/batches/images", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	r := newRouter(t)

	rec := upload(t, r, map[string][]byte{"a.png": pngBytes(t, 20, 10)}, "a.png")
	require.Equal(t, http.StatusCreated, rec.Code)
	var uploaded item.UploadResult
	decode(t, rec, &uploaded)
	id := uploaded.Items[0].ID

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown item", http.MethodGet, "/api/items/nope", "", http.StatusNotFound},
		{"unknown preview", http.MethodGet, "/api/items/nope/preview", "", http.StatusNotFound},
		{"output before processing", http.MethodGet, "/api/items/" + id + "/output", "", http.StatusConflict},
		{"no pdfs selected", http.MethodPost, "/api/batches/pdfs", `{"quality": 70}`, http.StatusBadRequest},
		{"quality out of range", http.MethodPost, "/api/batches/images", `{"quality": 150}`, http.StatusBadRequest},
		{"unknown format", http.MethodPost, "/api/batches/images", `{"format": "gif"}`, http.StatusBadRequest},
		{"resize without bound", http.MethodPost, "/api/batches/pdfs", `{"resize": true, "max_side": 0}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/batches/images", `{"quality": `, http.StatusBadRequest},
		{"invalid batch id", http.MethodGet, "/api/batches/xyz", "", http.StatusBadRequest},
		{"unknown batch", http.MethodGet, "/api/batches/" + uuid.NewString(), "", http.StatusNotFound},
		{"nothing to package", http.MethodGet, "/api/archive", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			contentType := ""
			if tt.body != "" {
				body = []byte(tt.body)
				contentType = "application/json"
			}

			rec := do(t, r, tt.method, tt.target, body, contentType)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			env := decode(t, rec, nil)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestUploadWithoutFiles(t *testing.T) {
	r := newRouter(t)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	rec := do(t, r, http.MethodPost, "/api/items", body.Bytes(), mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
