package jobs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/adverant/nexus/formextract-worker/internal/errors"
	"github.com/adverant/nexus/formextract-worker/internal/imageproc/imagetest"
)

func TestCreate(t *testing.T) {
	store := NewStore(t.TempDir(), "/v1/jobs")

	dir, err := store.Create("Scan 01.PDF", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)

	_, err = uuid.Parse(dir.ID)
	assert.NoError(t, err)

	input, err := dir.FindInput()
	require.NoError(t, err)
	assert.Equal(t, "input.pdf", filepath.Base(input))

	meta, err := os.ReadFile(dir.AssetPath("meta.txt"))
	require.NoError(t, err)
	assert.Equal(t, "filename=Scan 01.PDF\n", string(meta))
}

func TestCreateWithoutExtension(t *testing.T) {
	store := NewStore(t.TempDir(), "/v1/jobs")

	dir, err := store.Create("scan", strings.NewReader("data"))
	require.NoError(t, err)

	input, err := dir.FindInput()
	require.NoError(t, err)
	assert.Equal(t, "input.bin", filepath.Base(input))
}

func TestCreateRejectsEmptyUpload(t *testing.T) {
	store := NewStore(t.TempDir(), "/v1/jobs")

	_, err := store.Create("scan.png", strings.NewReader(""))
	assert.ErrorContains(t, err, "empty upload")

	_, err = store.Create("", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestFindInputMissing(t *testing.T) {
	dir := OpenDir(t.TempDir(), "job-1", "/v1/jobs")
	require.NoError(t, os.WriteFile(dir.AssetPath("page0.png"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(dir.AssetPath("input_dir"), 0o755))

	_, err := dir.FindInput()
	assert.ErrorIs(t, err, apperrors.ErrInputNotFound)
}

func TestFindInputMissingDir(t *testing.T) {
	dir := OpenDir(filepath.Join(t.TempDir(), "gone"), "job-1", "/v1/jobs")

	_, err := dir.FindInput()
	assert.ErrorIs(t, err, apperrors.ErrInputNotFound)
}

func TestOpen(t *testing.T) {
	store := NewStore(t.TempDir(), "/v1/jobs")
	created, err := store.Create("a.png", strings.NewReader("x"))
	require.NoError(t, err)

	dir, err := store.Open(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Path, dir.Path)

	_, err = store.Open("does-not-exist")
	assert.ErrorIs(t, err, apperrors.ErrInputNotFound)

	_, err = store.Open("../etc")
	assert.Error(t, err)
}

func TestAssetURI(t *testing.T) {
	dir := OpenDir("/data/jobs/abc", "abc", "/v1/jobs")
	assert.Equal(t, "/v1/jobs/abc/asset/page0.png", dir.AssetURI("page0.png"))
}

func TestSavePNGAndResult(t *testing.T) {
	dir := OpenDir(t.TempDir(), "abc", "/v1/jobs")

	uri, err := dir.SavePNG("table.png", imagetest.RGBCanvas(4, 4))
	require.NoError(t, err)
	assert.Equal(t, "/v1/jobs/abc/asset/table.png", uri)
	assert.FileExists(t, dir.AssetPath("table.png"))

	p, err := dir.WriteResult(map[string]string{"template": "inner_curvature_v1", "title": "曲率R"})
	require.NoError(t, err)
	assert.Equal(t, dir.AssetPath(ResultFile), p)

	var got map[string]string
	require.NoError(t, dir.ReadResult(&got))
	assert.Equal(t, "曲率R", got["title"])
}

func TestSavePNGFailure(t *testing.T) {
	dir := OpenDir(filepath.Join(t.TempDir(), "missing"), "abc", "/v1/jobs")

	_, err := dir.SavePNG("table.png", imagetest.RGBCanvas(4, 4))
	assert.ErrorIs(t, err, apperrors.ErrAssetWriteFailed)
}
