/**
 * Tesseract OCR engine
 *
 * One gosseract client per process, created lazily on the first recognition
 * and reused until Close. Calls are serialized: the underlying API handle is
 * not safe for concurrent use.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Config holds Tesseract configuration
type Config struct {
	// Languages is a "+" separated list, e.g. "eng+jpn"
	Languages      string
	TessdataPrefix string
}

// Engine implements ocr.Engine on top of a single gosseract client
type Engine struct {
	cfg Config

	once    sync.Once
	initErr error
	mu      sync.Mutex
	client  *gosseract.Client
}

// NewEngine creates an engine; the client is not loaded until first use
func NewEngine(cfg Config) *Engine {
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	return &Engine{cfg: cfg}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the non-empty text lines found in img
func (e *Engine) Recognize(ctx context.Context, img image.Image, allowlist string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.once.Do(e.init)
	if e.initErr != nil {
		return nil, e.initErr
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil, fmt.Errorf("tesseract engine closed")
	}
	// always set, so a previous call's allowlist never leaks into this one
	if err := e.client.SetWhitelist(allowlist); err != nil {
		return nil, fmt.Errorf("failed to set allowlist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}
	return splitLines(text), nil
}

// Close releases the client. Further calls to Recognize fail.
func (e *Engine) Close() error {
	e.once.Do(func() { e.initErr = fmt.Errorf("tesseract engine closed") })

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *Engine) init() {
	client := gosseract.NewClient()

	if e.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			client.Close()
			e.initErr = fmt.Errorf("failed to set tessdata prefix: %w", err)
			return
		}
	}
	if err := client.SetLanguage(strings.Split(e.cfg.Languages, "+")...); err != nil {
		client.Close()
		e.initErr = fmt.Errorf("failed to set languages %q: %w", e.cfg.Languages, err)
		return
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		e.initErr = fmt.Errorf("failed to set page segmentation mode: %w", err)
		return
	}

	e.mu.Lock()
	e.client = client
	e.mu.Unlock()
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
