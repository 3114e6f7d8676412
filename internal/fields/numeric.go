/**
 * Field parsers
 *
 * Pure text/image -> value functions for the per-field cleanup rules:
 * - numeric grid cells (with the straight-stroke "1" fallback)
 * - part numbers and confirmer initials
 * - month/day dates
 *
 * Nothing here talks to the OCR engine; callers pass recognized text in.
 */

package fields

import (
	"image"
	"regexp"
	"strings"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
)

// StrokeUpscale is the magnification applied to a tightened cell before the stroke test
const StrokeUpscale = 7

// ImplicitPlusOne is what a bare vertical stroke means on this sheet
const ImplicitPlusOne = "+1"

var numberPattern = regexp.MustCompile(`[+\-]?\d+(?:\.\d+)?`)

var numericReplacer = strings.NewReplacer(
	" ", "",
	"＋", "+",
	"－", "-",
	"O", "0",
	"o", "0",
	"I", "1",
	"l", "1",
	"|", "1",
)

// NumericStrategy tries to produce a cell value from the recognized text or the cell image
type NumericStrategy struct {
	Name  string
	Parse func(text string, cell image.Image) (string, bool)
}

// NumericStrategies run in order; the first success wins
var NumericStrategies = []NumericStrategy{
	{Name: "text", Parse: func(text string, _ image.Image) (string, bool) { return MatchNumber(text) }},
	{Name: "straight-stroke", Parse: strokeFallback},
}

// ParseNumericCell turns raw OCR output for one grid cell into a signed number
// with at most one decimal digit. cell may be nil, which disables the stroke fallback.
// Unrecognized cells yield "".
func ParseNumericCell(raw string, cell image.Image) string {
	text := NormalizeNumeric(raw)
	for _, s := range NumericStrategies {
		if v, ok := s.Parse(text, cell); ok {
			return v
		}
	}
	return ""
}

// NormalizeNumeric folds full-width signs and the usual letter/digit confusions
func NormalizeNumeric(raw string) string {
	return numericReplacer.Replace(strings.TrimSpace(raw))
}

// MatchNumber finds the first number in s. Extra decimal digits are truncated, not rounded.
func MatchNumber(s string) (string, bool) {
	num := numberPattern.FindString(s)
	if num == "" {
		return "", false
	}
	if left, right, ok := strings.Cut(num, "."); ok {
		num = left + "." + right[:1]
	}
	return num, true
}

func strokeFallback(_ string, cell image.Image) (string, bool) {
	if cell == nil {
		return "", false
	}
	big := imageproc.Upscale(imageproc.TightenToContent(cell), StrokeUpscale)
	if LooksLikeStraightOne(imageproc.Grayscale(big)) {
		return ImplicitPlusOne, true
	}
	return "", false
}
