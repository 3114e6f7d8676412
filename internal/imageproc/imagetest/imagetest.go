// Package imagetest builds synthetic images for tests across the pipeline.
package imagetest

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// Canvas returns a white grayscale image of the given size
func Canvas(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 0xff
	}
	return g
}

// RGBCanvas returns a white opaque RGB image of the given size
func RGBCanvas(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.White)
}

// Fill paints r (clipped to the image) with c
func Fill(img interface {
	image.Image
	Set(x, y int, c color.Color)
}, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// VerticalStroke returns a w x h white canvas with a black column of the given
// width centred horizontally and spanning the full height.
func VerticalStroke(w, h, width int) *image.Gray {
	g := Canvas(w, h)
	x := (w - width) / 2
	Fill(g, image.Rect(x, 0, x+width, h), color.Black)
	return g
}

// SavePNG writes img into dir/name and returns the path
func SavePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
	return path
}
