package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOptions is returned for out of range processing options.
var ErrInvalidOptions = errors.New("invalid processing options")

// DefaultPDFMaxSide bounds PDF pages when no resize bound is chosen.
const DefaultPDFMaxSide = 2048

// Format selects the encoding of a transcoded image.
type Format string

const (
	FormatAuto Format = "auto"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWEBP Format = "webp"
)

// ParseFormat accepts the format selector values, case-insensitively.
// An empty string means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatPNG, FormatJPEG, FormatWEBP:
		return f, nil
	case "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q", ErrInvalidOptions, s)
	}
}

// MediaType returns the container type written for an explicit format.
func (f Format) MediaType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Resolve maps the selector to a concrete format. Auto keeps PNG sources
// as PNG and turns everything else into JPEG.
func (f Format) Resolve(sourceType string) Format {
	if f != FormatAuto && f != "" {
		return f
	}

	if strings.Contains(sourceType, "png") {
		return FormatPNG
	}

	return FormatJPEG
}

// ImageOptions drive the image transcoder.
type ImageOptions struct {
	Quality float64 `json:"quality"`  // 0..1
	Format  Format  `json:"format"`   // auto, png, jpeg, webp
	MaxSide int     `json:"max_side"` // 0 disables resizing
}

// Validate checks option ranges.
func (o ImageOptions) Validate() error {
	if o.Quality < 0 || o.Quality > 1 {
		return fmt.Errorf("%w: image quality %v outside 0..1", ErrInvalidOptions, o.Quality)
	}
	if o.MaxSide < 0 {
		return fmt.Errorf("%w: negative max side %d", ErrInvalidOptions, o.MaxSide)
	}
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}

	return nil
}

// PDFOptions drive the PDF rasterizer.
type PDFOptions struct {
	Quality int `json:"quality"`  // 0..100
	MaxSide int `json:"max_side"` // longer page side bound in pixels
}

// Validate checks option ranges.
func (o PDFOptions) Validate() error {
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("%w: pdf quality %d outside 0..100", ErrInvalidOptions, o.Quality)
	}
	if o.MaxSide <= 0 {
		return fmt.Errorf("%w: max side must be positive, got %d", ErrInvalidOptions, o.MaxSide)
	}

	return nil
}

// NewImageOptions builds image options from the user facing controls:
// quality in percent, a format selector and the resize toggle with its bound.
func NewImageOptions(qualityPercent int, format string, resize bool, maxSide int) (ImageOptions, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return ImageOptions{}, err
	}

	opts := ImageOptions{
		Quality: float64(qualityPercent) / 100,
		Format:  f,
	}
	if resize {
		opts.MaxSide = maxSide
	}

	return opts, opts.Validate()
}

// NewPDFOptions builds PDF options from the user facing controls. Without
// the resize toggle pages are bounded by DefaultPDFMaxSide.
func NewPDFOptions(qualityPercent int, resize bool, maxSide int) (PDFOptions, error) {
	opts := PDFOptions{Quality: qualityPercent, MaxSide: DefaultPDFMaxSide}
	if resize {
		opts.MaxSide = maxSide
	}

	return opts, opts.Validate()
}
