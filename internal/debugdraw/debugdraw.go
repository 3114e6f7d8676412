// Package debugdraw renders the computed crop boxes onto copies of the page and
// table images so a human can check the layout against a real scan.
package debugdraw

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/adverant/nexus/formextract-worker/internal/geometry"
	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
	"github.com/adverant/nexus/formextract-worker/internal/layout"
)

// Named colors, matching their CSS values
var (
	Red    = color.NRGBA{R: 255, A: 255}
	Blue   = color.NRGBA{B: 255, A: 255}
	Green  = color.NRGBA{G: 128, A: 255}
	Cyan   = color.NRGBA{G: 255, B: 255, A: 255}
	Orange = color.NRGBA{R: 255, G: 165, A: 255}
	Purple = color.NRGBA{R: 128, B: 128, A: 255}
)

const (
	pageStroke  = 4
	pageInset   = 6
	tableStroke = 3
	tableInset  = 4
)

// Box is one labelled outline. Rect corners are inclusive, so X2/Y2 may sit
// one past the image edge and are clipped.
type Box struct {
	Rect  geometry.Rect
	Color color.NRGBA
	Label string
}

// Page draws boxes onto a copy of the page image with the page-level stroke
func Page(page image.Image, boxes []Box) *image.NRGBA {
	return Draw(page, boxes, pageStroke, pageInset)
}

// TableGrid draws the title, rows and column bands of tpl onto a copy of the table image.
// Boxes are drawn without padding.
func TableGrid(table image.Image, tpl layout.Template) *image.NRGBA {
	b := table.Bounds()
	rect := func(box geometry.NormalizedBox) geometry.Rect {
		return geometry.Rect{
			X1: int(box.Left * float64(b.Dx())),
			Y1: int(box.Top * float64(b.Dy())),
			X2: int(box.Right * float64(b.Dx())),
			Y2: int(box.Bottom * float64(b.Dy())),
		}
	}

	boxes := []Box{{Rect: rect(tpl.TableTitle), Color: Red, Label: "TITLE_RAW"}}
	for i, row := range tpl.Rows {
		boxes = append(boxes, Box{Rect: rect(row), Color: Cyan, Label: fmt.Sprintf("ROW%d", i+1)})
	}

	top, bottom := tpl.RowSpan()
	bands := []struct {
		band  layout.Band
		color color.NRGBA
		label string
	}{
		{tpl.Columns.Part, Blue, "PART"},
		{tpl.Columns.Grid, Green, "GRID"},
		{tpl.Columns.Date, Orange, "DATE"},
		{tpl.Columns.Confirm, Purple, "CONFIRM"},
	}
	for _, bd := range bands {
		boxes = append(boxes, Box{Rect: rect(bd.band.Span(top, bottom)), Color: bd.color, Label: bd.label})
	}

	return Draw(table, boxes, tableStroke, tableInset)
}

// Draw outlines every box with the given stroke width (growing inwards) and
// writes its label at (x1+inset, y1+inset).
func Draw(src image.Image, boxes []Box, stroke, inset int) *image.NRGBA {
	dst := imageproc.ToRGB(src)
	for _, b := range boxes {
		outline(dst, b.Rect, b.Color, stroke)
		if b.Label != "" {
			label(dst, b.Rect.X1+inset, b.Rect.Y1+inset, b.Label, b.Color)
		}
	}
	return dst
}

func outline(dst *image.NRGBA, r geometry.Rect, c color.NRGBA, stroke int) {
	for i := 0; i < stroke; i++ {
		x1, y1, x2, y2 := r.X1+i, r.Y1+i, r.X2-i, r.Y2-i
		if x1 > x2 || y1 > y2 {
			return
		}
		hline(dst, x1, x2, y1, c)
		hline(dst, x1, x2, y2, c)
		vline(dst, x1, y1, y2, c)
		vline(dst, x2, y1, y2, c)
	}
}

func hline(dst *image.NRGBA, x1, x2, y int, c color.NRGBA) {
	for x := x1; x <= x2; x++ {
		set(dst, x, y, c)
	}
}

func vline(dst *image.NRGBA, x, y1, y2 int, c color.NRGBA) {
	for y := y1; y <= y2; y++ {
		set(dst, x, y, c)
	}
}

func set(dst *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(dst.Rect) {
		dst.SetNRGBA(x, y, c)
	}
}

func label(dst *image.NRGBA, x, y int, text string, c color.NRGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
