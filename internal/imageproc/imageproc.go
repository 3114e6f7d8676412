/**
 * Image preprocessing for OCR
 *
 * Two presets feed the recognizer:
 * - printed: grayscale, autocontrast, hard threshold at 175
 * - handwriting-soft: grayscale, autocontrast only (keeps faint pencil strokes)
 *
 * Plus content tightening and nearest-neighbour upscaling for small cells.
 */

package imageproc

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Preset selects the preprocessing applied before recognition
type Preset int

const (
	Printed Preset = iota
	HandwritingSoft
)

func (p Preset) String() string {
	switch p {
	case Printed:
		return "printed"
	case HandwritingSoft:
		return "handwriting-soft"
	default:
		return "unknown"
	}
}

const (
	// PrintedThreshold: pixels brighter than this become background
	PrintedThreshold = 175
	// inkThreshold: after inverting, pixels brighter than this count as ink
	inkThreshold = 40
	// tightenPadding is added around the ink bounding box
	tightenPadding = 8
	// DefaultUpscale is the magnification used when no factor is given
	DefaultUpscale = 6
)

// Apply runs the preset over img and returns the OCR-ready grayscale image
func Apply(img image.Image, p Preset) *image.Gray {
	g := Autocontrast(Grayscale(img))
	if p == Printed {
		return Threshold(g, PrintedThreshold)
	}
	return g
}

// ToRGB returns an opaque copy of img with origin (0,0). Alpha is dropped, not composited.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Grayscale converts img to 8-bit luminance
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return cloneGray(g)
	}
	src := imaging.Grayscale(img)
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst.Pix[y*dst.Stride+x] = row[x*4]
		}
	}
	return dst
}

// Autocontrast stretches the used intensity range to 0..255.
// Images with a single intensity are returned unchanged.
func Autocontrast(g *image.Gray) *image.Gray {
	var hist [256]int
	forEachPixel(g, func(v uint8) { hist[v]++ })

	lo, hi := 0, 255
	for lo < 256 && hist[lo] == 0 {
		lo++
	}
	for hi >= 0 && hist[hi] == 0 {
		hi--
	}
	if hi <= lo {
		return cloneGray(g)
	}

	var lut [256]uint8
	for i := range lut {
		v := (i - lo) * 255 / (hi - lo)
		switch {
		case v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		lut[i] = uint8(v)
	}
	return mapGray(g, lut)
}

// Threshold maps pixels above level to white and everything else to black
func Threshold(g *image.Gray, level uint8) *image.Gray {
	var lut [256]uint8
	for i := range lut {
		if i > int(level) {
			lut[i] = 0xff
		}
	}
	return mapGray(g, lut)
}

// Invert returns the photographic negative of g
func Invert(g *image.Gray) *image.Gray {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(255 - i)
	}
	return mapGray(g, lut)
}

// InkBounds returns the bounding box of non-zero pixels in g, and false when there are none
func InkBounds(g *image.Gray) (image.Rectangle, bool) {
	b := g.Bounds()
	minX, minY := b.Dx(), b.Dy()
	maxX, maxY := -1, -1
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if g.Pix[y*g.Stride+x] == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// TightenToContent crops empty margins around ink, keeping 8px of context.
// When no ink is found the input is returned unchanged.
func TightenToContent(img image.Image) image.Image {
	bw := Threshold(Autocontrast(Invert(Grayscale(img))), inkThreshold)
	box, ok := InkBounds(bw)
	if !ok {
		return img
	}

	b := img.Bounds()
	rect := image.Rect(
		max(0, box.Min.X-tightenPadding),
		max(0, box.Min.Y-tightenPadding),
		min(b.Dx(), box.Max.X+tightenPadding),
		min(b.Dy(), box.Max.Y+tightenPadding),
	)
	return ToRGB(imaging.Crop(img, rect.Add(b.Min)))
}

// Upscale magnifies img by an integer factor with nearest-neighbour sampling.
// Images with either side of 1px or less are returned unchanged.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 0 {
		factor = DefaultUpscale
	}
	b := img.Bounds()
	if b.Dx() <= 1 || b.Dy() <= 1 {
		return img
	}

	target := image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor)
	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(target)
	} else {
		dst = image.NewNRGBA(target)
	}
	draw.NearestNeighbor.Scale(dst, target, img, b, draw.Src, nil)
	return dst
}

func forEachPixel(g *image.Gray, fn func(v uint8)) {
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			fn(v)
		}
	}
}

func mapGray(g *image.Gray, lut [256]uint8) *image.Gray {
	b := g.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x, v := range src {
			out[x] = lut[v]
		}
	}
	return dst
}

func cloneGray(g *image.Gray) *image.Gray {
	var identity [256]uint8
	for i := range identity {
		identity[i] = uint8(i)
	}
	return mapGray(g, identity)
}
