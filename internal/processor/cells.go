package processor

import (
	"context"
	"image"

	"github.com/adverant/nexus/formextract-worker/internal/fields"
	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
	"github.com/adverant/nexus/formextract-worker/internal/ocr"
)

// readNumericCell recognizes one grid cell; the cell image backs the stroke fallback
func (e *Extractor) readNumericCell(ctx context.Context, cell image.Image) string {
	raw := e.recognizer.Text(ctx, cell, ocr.Handwriting, e.tpl.Allowlists.Numeric)
	return fields.ParseNumericCell(raw, cell)
}

// readDate tightens and magnifies the date cell before recognition
func (e *Extractor) readDate(ctx context.Context, cell image.Image) (formatted, raw string) {
	big := imageproc.Upscale(imageproc.TightenToContent(cell), fields.DateUpscale)
	raw = e.recognizer.Text(ctx, big, ocr.Handwriting, e.tpl.Allowlists.Date)
	return fields.FormatDate(raw)
}

func (e *Extractor) readPartNumber(ctx context.Context, cell image.Image) string {
	return fields.CleanPartNumber(e.recognizer.Text(ctx, cell, ocr.Printed, e.tpl.Allowlists.Part))
}

func (e *Extractor) readConfirmer(ctx context.Context, cell image.Image) string {
	return fields.CleanConfirmer(e.recognizer.Text(ctx, cell, ocr.Handwriting, ""))
}

// splitGroups cuts the row's cells into n equal groups
func splitGroups(cells []string, n int) [][]string {
	groups := make([][]string, n)
	size := len(cells) / n
	for i := range groups {
		groups[i] = cells[i*size : (i+1)*size]
	}
	return groups
}
