/**
 * Normalized crop geometry
 *
 * Boxes are fractions of the image they are applied to. Nested regions
 * (page -> table -> row -> cell) are cropped from the parent crop, so every
 * box is relative to its parent's own coordinate space.
 */

package geometry

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
)

// NormalizedBox is a rectangle in fractions of the reference image's width and height
type NormalizedBox struct {
	Left   float64 `yaml:"left" json:"left"`
	Top    float64 `yaml:"top" json:"top"`
	Right  float64 `yaml:"right" json:"right"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
}

// Box is shorthand for a NormalizedBox literal
func Box(left, top, right, bottom float64) NormalizedBox {
	return NormalizedBox{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Validate checks the [0,1] range and ordering
func (b NormalizedBox) Validate() error {
	for _, v := range []float64{b.Left, b.Top, b.Right, b.Bottom} {
		if v < 0 || v > 1 {
			return fmt.Errorf("box %v: coordinate %v outside [0,1]", b, v)
		}
	}
	if b.Left >= b.Right || b.Top >= b.Bottom {
		return fmt.Errorf("box %v: left<right and top<bottom required", b)
	}
	return nil
}

// Rect is a pixel rectangle (x1,y1)-(x2,y2), x2/y2 exclusive, in the parent image's space
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Rectangle converts to an image.Rectangle
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Offset translates r by the origin of its parent
func (r Rect) Offset(parent Rect) Rect {
	return Rect{X1: r.X1 + parent.X1, Y1: r.Y1 + parent.Y1, X2: r.X2 + parent.X1, Y2: r.Y2 + parent.Y1}
}

// CropResult is a cropped image plus the rectangle it was cut from
type CropResult struct {
	Image *image.NRGBA
	Rect  Rect
}

// PixelRect maps box onto a width x height image, grows it by pad on every side
// and clamps it so that 0 <= x1 <= x2 <= width and 0 <= y1 <= y2 <= height.
func PixelRect(width, height int, box NormalizedBox, pad int) Rect {
	x1 := clamp(int(box.Left*float64(width))-pad, 0, width)
	y1 := clamp(int(box.Top*float64(height))-pad, 0, height)
	x2 := clamp(int(box.Right*float64(width))+pad, x1, width)
	y2 := clamp(int(box.Bottom*float64(height))+pad, y1, height)
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Crop cuts box (plus padding) out of an in-memory image. No I/O.
func Crop(src image.Image, box NormalizedBox, pad int) CropResult {
	b := src.Bounds()
	r := PixelRect(b.Dx(), b.Dy(), box, pad)
	return CropResult{
		Image: cropRect(src, r),
		Rect:  r,
	}
}

// CropFile loads the image at path and crops it exactly like Crop
func CropFile(path string, box NormalizedBox, pad int) (CropResult, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return CropResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return Crop(src, box, pad), nil
}

// Slices divides the full height of a reference into n equal-width columns
// spanning [left, right).
func Slices(left, right float64, n int) []NormalizedBox {
	boxes := make([]NormalizedBox, n)
	for i := 0; i < n; i++ {
		boxes[i] = NormalizedBox{
			Left:   left + (right-left)*float64(i)/float64(n),
			Top:    0,
			Right:  left + (right-left)*float64(i+1)/float64(n),
			Bottom: 1,
		}
	}
	return boxes
}

func cropRect(src image.Image, r Rect) *image.NRGBA {
	min := src.Bounds().Min
	if r.Width() == 0 || r.Height() == 0 {
		return image.NewNRGBA(image.Rect(0, 0, r.Width(), r.Height()))
	}
	return imageproc.ToRGB(imaging.Crop(src, r.Rectangle().Add(min)))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
