package fields

import (
	"image"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
)

const (
	strokeInkLevel = 170
	strokeMinSide  = 10
	strokeMinInk   = 18
)

// LooksLikeStraightOne reports whether g holds a single thin vertical stroke,
// the way "1" is handwritten on this sheet. g is expected to be tightened and upscaled.
//
// The stroke must be a narrow column band, cover at least half the rows
// and must not spread wider than 30% of the cell.
func LooksLikeStraightOne(g *image.Gray) bool {
	g = imageproc.Autocontrast(g)
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < strokeMinSide || h < strokeMinSide {
		return false
	}

	cols := make([]int, w)
	activeRows, total := 0, 0
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		n := 0
		for x, v := range row {
			if v < strokeInkLevel {
				cols[x]++
				n++
			}
		}
		if n > 0 {
			activeRows++
		}
		total += n
	}
	if total < strokeMinInk {
		return false
	}

	peak := 0
	for _, c := range cols {
		peak = max(peak, c)
	}
	if peak == 0 {
		return false
	}

	activeCols := 0
	for _, c := range cols {
		if float64(c) > 0.20*float64(peak) {
			activeCols++
		}
	}

	thin := activeCols <= max(2, int(0.20*float64(w)))
	tall := activeRows >= int(0.50*float64(h))
	notBlob := activeCols <= int(0.30*float64(w))
	return thin && tall && notBlob
}
