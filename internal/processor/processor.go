package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliskhannn/iconverter/internal/model"
)

var (
	// ErrDecode marks input bytes the decoder or renderer could not read.
	ErrDecode = errors.New("decode failed")
	// ErrEncode marks a rejected encoding or an encoder that produced no data.
	ErrEncode = errors.New("encode failed")
)

// Processor turns source files into compressed outputs: images are
// transcoded, PDFs are rasterized and rebuilt.
type Processor struct{}

// New creates a new Processor.
func New() *Processor {
	return &Processor{}
}

// Process runs the routine matching the item kind with the options carried
// by the batch.
func (p *Processor) Process(ctx context.Context, it model.Item, b model.Batch) (model.Output, error) {
	switch it.Kind {
	case model.KindImage:
		if b.Image == nil {
			return model.Output{}, fmt.Errorf("%w: batch %s has no image options", model.ErrInvalidOptions, b.ID)
		}
		return p.Transcode(ctx, it.Source, *b.Image)
	case model.KindPDF:
		if b.PDF == nil {
			return model.Output{}, fmt.Errorf("%w: batch %s has no pdf options", model.ErrInvalidOptions, b.ID)
		}
		return p.OptimizePDF(ctx, it.Source, *b.PDF)
	default:
		return model.Output{}, fmt.Errorf("unknown item kind: %s", it.Kind)
	}
}

func decodeError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, msg, err)
}

func encodeError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrEncode, msg)
	}

	return fmt.Errorf("%w: %s: %w", ErrEncode, msg, err)
}
