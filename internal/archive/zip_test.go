package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = string(body)
	}
	return files
}

func TestWrite(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Write(buf, []Entry{
		{Name: "report-optimized.pdf", Data: []byte("%PDF")},
		{Name: "photo.png", Data: []byte("png")},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"report-optimized.pdf": "%PDF",
		"photo.png":            "png",
	}, readArchive(t, buf.Bytes()))
}

func TestWrite_DuplicateNames(t *testing.T) {
	buf := new(bytes.Buffer)
	err := Write(buf, []Entry{
		{Name: "photo.png", Data: []byte("one")},
		{Name: "photo.png", Data: []byte("two")},
		{Name: "photo.png", Data: []byte("three")},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"photo.png":   "one",
		"photo-2.png": "two",
		"photo-3.png": "three",
	}, readArchive(t, buf.Bytes()))
}

func TestWrite_Empty(t *testing.T) {
	assert.ErrorIs(t, Write(io.Discard, nil), ErrEmpty)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWrite_PackagingFailure(t *testing.T) {
	err := Write(failingWriter{}, []Entry{{Name: "a.png", Data: bytes.Repeat([]byte("x"), 1<<16)}})
	assert.ErrorIs(t, err, ErrPackage)
}

func TestUniqueName(t *testing.T) {
	taken := map[string]struct{}{}
	assert.Equal(t, "a.pdf", UniqueName("a.pdf", taken))
	assert.Equal(t, "a-2.pdf", UniqueName("a.pdf", taken))
	assert.Equal(t, "noext", UniqueName("noext", taken))
	assert.Equal(t, "noext-2", UniqueName("noext", taken))
	assert.Equal(t, "file", UniqueName("", taken))
}
