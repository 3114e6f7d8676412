/**
 * Page rasterization
 *
 * Turns a job's input file into an opaque RGB image of its first page:
 * - PDF: rendered by pdftoppm at 72*scale DPI (scale 2.0 = 144 DPI)
 * - raster images: decoded and passed through as RGB
 */

package raster

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc"
)

// DefaultScale renders PDFs at twice their native 72 DPI
const DefaultScale = 2.0

// ErrUnsupported is returned for inputs that are neither PDF nor a decodable image
var ErrUnsupported = stderrors.New("unsupported input format")

// Runner executes an external command and returns its combined output
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	return cmd.CombinedOutput()
}

// Config holds rasterization settings
type Config struct {
	PdftoppmPath string
	Scale        float64
}

// Page is the rasterized first page of an input
type Page struct {
	Image    *image.NRGBA
	MimeType string
}

// Renderer rasterizes job inputs
type Renderer struct {
	cfg    Config
	runner Runner
}

// NewRenderer creates a renderer that shells out to pdftoppm for PDFs
func NewRenderer(cfg Config) *Renderer {
	return NewRendererWithRunner(cfg, execRunner{})
}

// NewRendererWithRunner is NewRenderer with a custom command runner
func NewRendererWithRunner(cfg Config, runner Runner) *Renderer {
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = "pdftoppm"
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	return &Renderer{cfg: cfg, runner: runner}
}

// DPI is the pdftoppm resolution for the configured scale
func (r *Renderer) DPI() int {
	return int(math.Round(72 * r.cfg.Scale))
}

// Render rasterizes the first page of the file at path
func (r *Renderer) Render(ctx context.Context, path string) (*Page, error) {
	head, err := readHead(path, 16)
	if err != nil {
		return nil, err
	}
	mime := DetectMimeType(head)

	if IsPDF(path, head) {
		img, err := r.renderPDF(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Page{Image: img, MimeType: "application/pdf"}, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrUnsupported, filepath.Base(path), orUnknown(mime), err)
	}
	return &Page{Image: imageproc.ToRGB(img), MimeType: mime}, nil
}

func (r *Renderer) renderPDF(ctx context.Context, path string) (*image.NRGBA, error) {
	tmpDir, err := os.MkdirTemp("", "formextract-raster-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{
		"-png",
		"-r", strconv.Itoa(r.DPI()),
		"-f", "1", "-l", "1",
		"-singlefile",
		"-q",
		path, prefix,
	}
	out, err := r.runner.CombinedOutput(ctx, r.cfg.PdftoppmPath, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("pdftoppm timed out")
	}
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	img, err := imaging.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}
	return imageproc.ToRGB(img), nil
}

// IsPDF reports whether the input is a PDF, by extension or by magic bytes
func IsPDF(path string, head []byte) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") || bytes.HasPrefix(head, []byte("%PDF"))
}

// DetectMimeType sniffs the formats this worker accepts from their magic bytes.
// Unknown data yields "".
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF, either byte order (scanners love it)
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	return ""
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !stderrors.Is(err, io.ErrUnexpectedEOF) && !stderrors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return buf[:read], nil
}

func orUnknown(mime string) string {
	if mime == "" {
		return "unknown"
	}
	return mime
}
