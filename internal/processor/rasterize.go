package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/jung-kurt/gofpdf"
	"rsc.io/pdf"

	"github.com/aliskhannn/iconverter/internal/model"
)

// pointsPerInch is the resolution at which a page renders at scale 1.
const pointsPerInch = 72.0

var errNoPages = errors.New("document has no pages")

// OptimizePDF renders every page of a PDF to a JPEG at a bounded resolution
// and assembles a new document with one full-page image per page. Text and
// vector content of the source are not carried over.
func (p *Processor) OptimizePDF(ctx context.Context, src model.SourceFile, opts model.PDFOptions) (model.Output, error) {
	if err := opts.Validate(); err != nil {
		return model.Output{}, err
	}

	doc, err := fitz.NewFromMemory(src.Data)
	if err != nil {
		return model.Output{}, decodeError("failed to open pdf", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return model.Output{}, decodeError("failed to open pdf", errNoPages)
	}

	out := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "A4",
	})
	out.SetMargins(0, 0, 0)
	out.SetAutoPageBreak(false, 0)
	out.SetCreator("iconverter", true)

	var first image.Point
	boxes := pageBoxes(src.Data, pageCount)

	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return model.Output{}, err
		}

		natural, err := naturalSize(doc, boxes, i)
		if err != nil {
			return model.Output{}, err
		}

		jpg, size, err := renderPage(doc, i, natural, opts)
		if err != nil {
			return model.Output{}, err
		}
		if i == 0 {
			first = size
		}

		w, h := float64(size.X), float64(size.Y)
		name := fmt.Sprintf("page-%d", i+1)
		imgOpts := gofpdf.ImageOptions{ImageType: "JPG"}

		out.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(jpg))
		out.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		out.ImageOptions(name, 0, 0, w, h, false, imgOpts, 0, "")

		if err := out.Error(); err != nil {
			return model.Output{}, encodeError(fmt.Sprintf("failed to add page %d", i+1), err)
		}
	}

	buf := new(bytes.Buffer)
	if err := out.Output(buf); err != nil {
		return model.Output{}, encodeError("failed to write pdf", err)
	}

	return model.Output{
		Data:      buf.Bytes(),
		MediaType: model.MediaTypePDF,
		Width:     first.X,
		Height:    first.Y,
		Pages:     pageCount,
	}, nil
}

// pageSize is a page's width and height in points.
type pageSize struct {
	w, h float64
}

// pageBoxes reads the unrounded size of every page: the crop box, else the
// media box, both inheritable, with quarter turns from /Rotate applied. It
// returns nil when the document does not parse or its page count differs
// from the renderer's.
func pageBoxes(data []byte, pageCount int) (sizes []pageSize) {
	// rsc.io/pdf panics on some malformed documents.
	defer func() {
		if recover() != nil {
			sizes = nil
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || r.NumPage() != pageCount {
		return nil
	}

	sizes = make([]pageSize, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		page := r.Page(i).V

		box := inherited(page, "CropBox")
		if box.Len() < 4 {
			box = inherited(page, "MediaBox")
		}
		if box.Len() < 4 {
			return nil
		}

		size := pageSize{
			w: math.Abs(box.Index(2).Float64() - box.Index(0).Float64()),
			h: math.Abs(box.Index(3).Float64() - box.Index(1).Float64()),
		}
		if inherited(page, "Rotate").Int64()%180 != 0 {
			size.w, size.h = size.h, size.w
		}

		sizes = append(sizes, size)
	}

	return sizes
}

// inherited looks key up on the page and then its ancestors in the page tree.
func inherited(page pdf.Value, key string) pdf.Value {
	for v := page; v.Kind() == pdf.Dict; v = v.Key("Parent") {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
	}

	return pdf.Value{}
}

// naturalSize is the page size at scale 1. The renderer's own bound is
// whole points only, so it is used just when the page boxes are unknown.
func naturalSize(doc *fitz.Document, boxes []pageSize, index int) (pageSize, error) {
	if index < len(boxes) && boxes[index].w > 0 && boxes[index].h > 0 {
		return boxes[index], nil
	}

	bound, err := doc.Bound(index)
	if err != nil {
		return pageSize{}, decodeError(fmt.Sprintf("failed to measure page %d", index+1), err)
	}

	return pageSize{w: float64(bound.Dx()), h: float64(bound.Dy())}, nil
}

// renderPage rasterizes one zero-based page at the clamped scale and returns
// the JPEG bytes with their pixel size.
func renderPage(doc *fitz.Document, index int, natural pageSize, opts model.PDFOptions) ([]byte, image.Point, error) {
	scale := rasterScale(natural.w, natural.h, opts.MaxSide)
	w := max(1, int(math.Round(natural.w*scale)))
	h := max(1, int(math.Round(natural.h*scale)))

	img, err := doc.ImageDPI(index, pointsPerInch*scale)
	if err != nil {
		return nil, image.Point{}, decodeError(fmt.Sprintf("failed to render page %d", index+1), err)
	}

	fitted := fitSurface(img, w, h)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, fitted, imaging.JPEG, imaging.JPEGQuality(clamp(opts.Quality, 1, 100))); err != nil {
		return nil, image.Point{}, encodeError(fmt.Sprintf("failed to encode page %d", index+1), err)
	}
	if buf.Len() == 0 {
		return nil, image.Point{}, encodeError(fmt.Sprintf("no data for page %d", index+1), nil)
	}

	return buf.Bytes(), image.Pt(w, h), nil
}

// fitSurface pins a rendered page to w x h. The renderer rounds its device
// box outwards, so an extra pixel column or row is cropped off; any other
// mismatch is resampled.
func fitSurface(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	dx, dy := b.Dx()-w, b.Dy()-h

	switch {
	case dx == 0 && dy == 0:
		return img
	case dx >= 0 && dx <= 1 && dy >= 0 && dy <= 1:
		return imaging.Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+w, b.Min.Y+h))
	default:
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}
}

// rasterScale is the factor that brings the longer page side down to
// maxSide. It never exceeds 1.
func rasterScale(w, h float64, maxSide int) float64 {
	longest := math.Max(w, h)
	if longest <= 0 || maxSide <= 0 {
		return 1
	}

	return math.Min(1, float64(maxSide)/longest)
}

// PageCount opens a PDF and reports its number of pages.
func (p *Processor) PageCount(data []byte) (int, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, decodeError("failed to open pdf", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}
