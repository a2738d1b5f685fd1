package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		mediaType string
		kind      Kind
		ok        bool
	}{
		{"image/png", KindImage, true},
		{"image/jpeg", KindImage, true},
		{"image/svg+xml", KindImage, true},
		{"application/pdf", KindPDF, true},
		{"application/x-pdf", "", false},
		{"text/plain", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			kind, ok := KindOf(tt.mediaType)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		kind Kind
		name string
		want string
	}{
		{KindPDF, "report.pdf", "report-optimized.pdf"},
		{KindPDF, "REPORT.PDF", "REPORT-optimized.pdf"},
		{KindPDF, "my.pdf.backup", "my.pdf.backup"},
		{KindPDF, "scan", "scan"},
		{KindImage, "photo.png", "photo.png"},
		{KindImage, "photo.pdf", "photo.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.kind, tt.name))
		})
	}
}

func TestFormatResolve(t *testing.T) {
	assert.Equal(t, FormatPNG, FormatAuto.Resolve("image/png"))
	assert.Equal(t, FormatPNG, FormatAuto.Resolve("image/apng"))
	assert.Equal(t, FormatJPEG, FormatAuto.Resolve("image/gif"))
	assert.Equal(t, FormatJPEG, FormatAuto.Resolve("image/webp"))
	assert.Equal(t, FormatJPEG, Format("").Resolve("image/bmp"))

	for _, f := range []Format{FormatPNG, FormatJPEG, FormatWEBP} {
		assert.Equal(t, f, f.Resolve("image/png"))
		assert.Equal(t, f, f.Resolve("image/jpeg"))
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JPG")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	_, err = ParseFormat("tiff")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestNewImageOptions(t *testing.T) {
	opts, err := NewImageOptions(80, "auto", true, 1600)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, opts.Quality, 1e-9)
	assert.Equal(t, 1600, opts.MaxSide)

	opts, err = NewImageOptions(80, "webp", false, 1600)
	require.NoError(t, err)
	assert.Zero(t, opts.MaxSide)
	assert.Equal(t, FormatWEBP, opts.Format)

	_, err = NewImageOptions(120, "png", false, 0)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestNewPDFOptions(t *testing.T) {
	opts, err := NewPDFOptions(70, false, 1024)
	require.NoError(t, err)
	assert.Equal(t, DefaultPDFMaxSide, opts.MaxSide)

	opts, err = NewPDFOptions(70, true, 1024)
	require.NoError(t, err)
	assert.Equal(t, 1024, opts.MaxSide)

	_, err = NewPDFOptions(-1, false, 0)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewPDFOptions(50, true, 0)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
