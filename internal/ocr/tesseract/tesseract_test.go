package tesseract

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc/imagetest"
)

func requireTesseract(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed")
	}
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"DB11-3A", "+1.5"}, splitLines("  DB11-3A \n\n +1.5\n"))
	assert.Nil(t, splitLines(" \n "))
}

func TestRecognizeBlankImage(t *testing.T) {
	requireTesseract(t)

	e := NewEngine(Config{Languages: "eng"})
	defer e.Close()

	lines, err := e.Recognize(context.Background(), imagetest.Canvas(120, 40), "0123456789")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestRecognizeAfterClose(t *testing.T) {
	e := NewEngine(Config{})
	require.NoError(t, e.Close())

	_, err := e.Recognize(context.Background(), imagetest.Canvas(10, 10), "")
	assert.Error(t, err)
}

func TestRecognizeCancelled(t *testing.T) {
	e := NewEngine(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recognize(ctx, imagetest.Canvas(10, 10), "")
	assert.ErrorIs(t, err, context.Canceled)
}
