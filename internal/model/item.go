package model

import (
	"regexp"
	"strings"
	"time"
)

// Kind tells which processor an item belongs to.
type Kind string

const (
	KindImage Kind = "image"
	KindPDF   Kind = "pdf"
)

// MediaTypePDF is the only declared type accepted as a PDF.
const MediaTypePDF = "application/pdf"

var pdfSuffix = regexp.MustCompile(`(?i)\.pdf$`)

// KindOf derives the item kind from a declared media type.
// The second result is false for types that are not accepted.
func KindOf(mediaType string) (Kind, bool) {
	switch {
	case mediaType == MediaTypePDF:
		return KindPDF, true
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage, true
	default:
		return "", false
	}
}

// SourceFile is a user supplied file as it was received.
type SourceFile struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// Item is one source file tracked through ingestion, processing and download.
type Item struct {
	ID          string     `json:"id"`
	Source      SourceFile `json:"source"`
	Kind        Kind       `json:"kind"`
	Preview     string     `json:"-"`            // storage key of the preview blob
	PreviewType string     `json:"preview_type"` // media type of the preview blob
	Output      []byte     `json:"-"`
	OutputType  string     `json:"output_type,omitempty"`
	Selected    bool       `json:"selected"`
	Pages       int        `json:"pages,omitempty"` // PDFs only
	CreatedAt   time.Time  `json:"created_at"`
}

// Processed reports whether the item carries a non-empty output.
func (it Item) Processed() bool {
	return len(it.Output) > 0
}

// OutputName returns the file name used when the output is downloaded.
func (it Item) OutputName() string {
	return OutputName(it.Kind, it.Source.Name)
}

// OutputName applies the download naming rule: a PDF has its trailing
// ".pdf" replaced by "-optimized.pdf", images keep their name.
func OutputName(kind Kind, name string) string {
	if kind != KindPDF {
		return name
	}

	return pdfSuffix.ReplaceAllString(name, "-optimized.pdf")
}

// Output is the result of one processing call.
type Output struct {
	Data      []byte
	MediaType string
	Width     int // pixels for images, first page for PDFs
	Height    int
	Pages     int // PDFs only
}
