/**
 * OCR adapter
 *
 * Wraps an injected recognition Engine with the two preprocessing modes used
 * by the form pipeline:
 * - printed: hard-thresholded input for machine-printed text
 * - handwriting: soft contrast only, keeps faint pencil strokes
 *
 * Recognition never fails from the caller's point of view: engine errors are
 * logged and degrade to an empty string.
 */

package ocr

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
)

// Mode selects the preprocessing preset applied before recognition
type Mode int

const (
	Printed Mode = iota
	Handwriting
)

func (m Mode) String() string {
	if m == Handwriting {
		return "handwriting"
	}
	return "printed"
}

// Preset maps the mode onto its preprocessing preset
func (m Mode) Preset() imageproc.Preset {
	if m == Handwriting {
		return imageproc.HandwritingSoft
	}
	return imageproc.Printed
}

// Engine is the recognition capability. It returns the recognized text
// fragments for img, restricted to allowlist when it is not empty.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, allowlist string) ([]string, error)
}

// Result is the outcome of one recognition call
type Result struct {
	Text      string
	Fragments []string
	Mode      Mode
	Allowlist string
	Duration  time.Duration
	Err       error
}

// Recognizer applies preprocessing and joins engine output
type Recognizer struct {
	engine Engine
	logger *logging.Logger
}

// NewRecognizer creates a recognizer over engine
func NewRecognizer(engine Engine, logger *logging.Logger) *Recognizer {
	if logger == nil {
		logger = logging.NewLogger("ocr")
	}
	return &Recognizer{engine: engine, logger: logger}
}

// Text recognizes img and returns the trimmed fragments joined by single spaces
func (r *Recognizer) Text(ctx context.Context, img image.Image, mode Mode, allowlist string) string {
	return r.Recognize(ctx, img, mode, allowlist).Text
}

// Recognize is Text with timing and the engine error kept for diagnostics
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, mode Mode, allowlist string) Result {
	start := time.Now()
	res := Result{Mode: mode, Allowlist: allowlist}

	pre := imageproc.Apply(img, mode.Preset())
	fragments, err := r.engine.Recognize(ctx, pre, allowlist)
	res.Duration = time.Since(start)
	if err != nil {
		r.logger.Debug("recognition failed, treating as empty", "mode", mode.String(), "error", err)
		res.Err = err
		return res
	}

	res.Fragments = fragments
	res.Text = JoinFragments(fragments)
	return res
}

// JoinFragments trims each fragment, drops empties and joins with single spaces
func JoinFragments(fragments []string) string {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
