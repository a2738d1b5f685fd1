package processor

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp" // webp input

	"github.com/aliskhannn/iconverter/internal/model"
)

// Transcode decodes an image, shrinks it to the max side bound when it is
// larger and re-encodes it in the requested format at the given quality.
func (p *Processor) Transcode(ctx context.Context, src model.SourceFile, opts model.ImageOptions) (model.Output, error) {
	if err := opts.Validate(); err != nil {
		return model.Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Output{}, err
	}

	// Decode into an image object, honoring EXIF orientation.
	img, err := imaging.Decode(bytes.NewReader(src.Data), imaging.AutoOrientation(true))
	if err != nil {
		return model.Output{}, decodeError("failed to decode image", err)
	}

	bounds := img.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), opts.MaxSide)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	// Draw onto a fresh surface of the final size.
	dc := gg.NewContext(w, h)
	dc.DrawImage(img, 0, 0)

	format := opts.Format.Resolve(src.MediaType)

	buf := new(bytes.Buffer)
	if err := encode(buf, dc.Image(), format, opts.Quality); err != nil {
		return model.Output{}, err
	}
	if buf.Len() == 0 {
		return model.Output{}, encodeError("encoder returned no data", nil)
	}

	return model.Output{
		Data:      buf.Bytes(),
		MediaType: format.MediaType(),
		Width:     w,
		Height:    h,
	}, nil
}

func encode(buf *bytes.Buffer, img image.Image, format model.Format, quality float64) error {
	q := int(math.Round(quality * 100))

	switch format {
	case model.FormatPNG:
		// Lossless: quality does not apply.
		if err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return encodeError("failed to encode png", err)
		}
	case model.FormatWEBP:
		if err := webp.Encode(buf, img, webp.Options{Quality: clamp(q, 0, 100)}); err != nil {
			return encodeError("failed to encode webp", err)
		}
	default:
		if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(clamp(q, 1, 100))); err != nil {
			return encodeError("failed to encode jpeg", err)
		}
	}

	return nil
}

// fitWithin scales w×h uniformly so that the longer side equals maxSide when
// it exceeds it. Each side is rounded on its own, so the aspect ratio may
// drift by a pixel.
func fitWithin(w, h, maxSide int) (int, int) {
	longest := max(w, h)
	if maxSide <= 0 || longest <= maxSide {
		return w, h
	}

	scale := float64(maxSide) / float64(longest)

	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
