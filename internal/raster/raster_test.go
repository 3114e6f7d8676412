package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/formextract-worker/internal/imageproc/imagetest"
)

// fakeRunner pretends to be pdftoppm: it writes a page image to <prefix>.png
type fakeRunner struct {
	page image.Image
	err  error
	args []string
	name string
}

func (f *fakeRunner) CombinedOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name, f.args = name, args
	if f.err != nil {
		return []byte("Syntax Error: broken xref"), f.err
	}
	prefix := args[len(args)-1]
	return nil, imaging.Save(f.page, prefix+".png")
}

func TestRenderImagePassthrough(t *testing.T) {
	dir := t.TempDir()
	src := imagetest.RGBCanvas(40, 30)
	imagetest.Fill(src, image.Rect(0, 0, 5, 5), color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	path := imagetest.SavePNG(t, dir, "input.png", src)

	page, err := NewRenderer(Config{}).Render(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "image/png", page.MimeType)
	assert.Equal(t, image.Rect(0, 0, 40, 30), page.Image.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, page.Image.NRGBAAt(1, 1))
}

func TestRenderPDFUsesPdftoppm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))

	runner := &fakeRunner{page: imagetest.RGBCanvas(1190, 1684)}
	r := NewRendererWithRunner(Config{PdftoppmPath: "/opt/poppler/pdftoppm", Scale: 2}, runner)

	page, err := r.Render(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", page.MimeType)
	assert.Equal(t, 1190, page.Image.Bounds().Dx())
	assert.Equal(t, "/opt/poppler/pdftoppm", runner.name)
	assert.Equal(t, []string{"-png", "-r", "144", "-f", "1", "-l", "1", "-singlefile", "-q", path}, runner.args[:len(runner.args)-1])
}

func TestRenderPDFByMagicBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 ..."), 0o644))

	runner := &fakeRunner{page: imagetest.RGBCanvas(10, 10)}
	_, err := NewRendererWithRunner(Config{}, runner).Render(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "pdftoppm", runner.name)
}

func TestRenderPDFFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))

	runner := &fakeRunner{err: errors.New("exit status 1")}
	_, err := NewRendererWithRunner(Config{}, runner).Render(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken xref")
}

func TestRenderUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image at all"), 0o644))

	_, err := NewRenderer(Config{}).Render(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRenderMissingFile(t *testing.T) {
	_, err := NewRenderer(Config{}).Render(context.Background(), "/nonexistent/input.png")
	assert.Error(t, err)
}

func TestRenderRealPDF(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "input.pdf")
	require.NoError(t, os.WriteFile(path, []byte(minimalPDF), 0o644))

	page, err := NewRenderer(Config{}).Render(context.Background(), path)
	require.NoError(t, err)
	// 200x100pt page at 144 DPI
	assert.Equal(t, image.Rect(0, 0, 400, 200), page.Image.Bounds())
}

func TestDPI(t *testing.T) {
	assert.Equal(t, 144, NewRenderer(Config{}).DPI())
	assert.Equal(t, 216, NewRenderer(Config{Scale: 3}).DPI())
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("%PDF-1.7"), "application/pdf"},
		{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{[]byte("GIF89a.."), "image/gif"},
		{[]byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{[]byte{0x49, 0x49, 0x2A, 0x00}, "image/tiff"},
		{[]byte("BM\x00\x00"), "image/bmp"},
		{[]byte("PK\x03\x04"), ""},
		{[]byte("ab"), ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, DetectMimeType(tc.data))
	}
}

const minimalPDF = `%PDF-1.1
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj
3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 200 100] >> endobj
trailer << /Root 1 0 R >>
%%EOF
`
