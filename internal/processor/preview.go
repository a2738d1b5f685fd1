package processor

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	placeholderWidth  = 180
	placeholderHeight = 240
	maxLabelRunes     = 22
)

// Placeholder draws a document card used as the preview of a PDF: a page
// outline with a folded corner, the file name, its size and page count.
func (p *Processor) Placeholder(name string, size int64, pages int) ([]byte, error) {
	dc := gg.NewContext(placeholderWidth, placeholderHeight)
	dc.SetColor(color.White)
	dc.Clear()

	// Page outline with a folded top-right corner.
	const margin, fold = 30.0, 28.0
	right := float64(placeholderWidth) - margin
	dc.MoveTo(margin, 20)
	dc.LineTo(right-fold, 20)
	dc.LineTo(right, 20+fold)
	dc.LineTo(right, 150)
	dc.LineTo(margin, 150)
	dc.ClosePath()
	dc.SetRGB255(236, 240, 245)
	dc.FillPreserve()
	dc.SetRGB255(120, 130, 145)
	dc.SetLineWidth(2)
	dc.Stroke()

	dc.MoveTo(right-fold, 20)
	dc.LineTo(right-fold, 20+fold)
	dc.LineTo(right, 20+fold)
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB255(200, 40, 40)
	dc.DrawStringAnchored("PDF", float64(placeholderWidth)/2, 95, 0.5, 0.5)

	dc.SetRGB255(30, 30, 30)
	dc.DrawStringAnchored(truncate(name, maxLabelRunes), float64(placeholderWidth)/2, 180, 0.5, 0.5)

	dc.SetRGB255(110, 110, 110)
	meta := humanize.Bytes(uint64(size))
	if pages > 0 {
		meta = fmt.Sprintf("%s, %d %s", meta, pages, plural(pages, "page", "pages"))
	}
	dc.DrawStringAnchored(meta, float64(placeholderWidth)/2, 205, 0.5, 0.5)

	buf := new(bytes.Buffer)
	if err := dc.EncodePNG(buf); err != nil {
		return nil, encodeError("failed to encode placeholder", err)
	}

	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-3]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
