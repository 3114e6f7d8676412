/**
 * Job directories
 *
 * One flat directory per job id holding the uploaded input.<ext>, every
 * image asset the pipeline writes, and result.json. Assets are addressed by
 * file name alone and exposed as <prefix>/<jobId>/asset/<file>.
 */

package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	apperrors "github.com/adverant/nexus/formextract-worker/internal/errors"
)

const (
	inputPrefix = "input"
	metaFile    = "meta.txt"
	// ResultFile holds the extraction result record as JSON
	ResultFile = "result.json"
)

// Store manages job directories under a root
type Store struct {
	root        string
	assetPrefix string
}

// NewStore creates a store rooted at root. assetPrefix is prepended to asset URIs.
func NewStore(root, assetPrefix string) *Store {
	return &Store{root: root, assetPrefix: assetPrefix}
}

// Root returns the directory holding all jobs
func (s *Store) Root() string { return s.root }

// Create makes a new job directory with a fresh id and stores the upload as
// input<ext>, where ext is the lower-cased extension of filename (".bin" when missing).
func (s *Store) Create(filename string, r io.Reader) (*Dir, error) {
	if filename == "" {
		return nil, fmt.Errorf("no filename")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	id := uuid.New().String()
	dir := s.dir(id)
	if err := os.MkdirAll(dir.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".bin"
	}
	if err := os.WriteFile(dir.AssetPath(inputPrefix+ext), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write input: %w", err)
	}
	meta := fmt.Sprintf("filename=%s\n", filename)
	if err := os.WriteFile(dir.AssetPath(metaFile), []byte(meta), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write meta: %w", err)
	}
	return dir, nil
}

// Open returns the directory of an existing job
func (s *Store) Open(jobID string) (*Dir, error) {
	if jobID == "" || jobID == "." || jobID == ".." || filepath.Base(jobID) != jobID {
		return nil, fmt.Errorf("invalid job id %q", jobID)
	}
	dir := s.dir(jobID)
	info, err := os.Stat(dir.Path)
	if err != nil || !info.IsDir() {
		return nil, apperrors.NewInputNotFoundError(jobID, dir.Path, fmt.Errorf("job not found"))
	}
	return dir, nil
}

func (s *Store) dir(id string) *Dir {
	return OpenDir(filepath.Join(s.root, id), id, s.assetPrefix)
}

// Dir is one job's working directory
type Dir struct {
	ID          string
	Path        string
	assetPrefix string
}

// OpenDir wraps an arbitrary directory as a job directory. No I/O.
func OpenDir(dirPath, jobID, assetPrefix string) *Dir {
	return &Dir{ID: jobID, Path: dirPath, assetPrefix: assetPrefix}
}

// FindInput returns the path of the first regular file whose name starts with "input"
func (d *Dir) FindInput() (string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return "", apperrors.NewInputNotFoundError(d.ID, d.Path, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), inputPrefix) && e.Type().IsRegular() {
			return filepath.Join(d.Path, e.Name()), nil
		}
	}
	return "", apperrors.NewInputNotFoundError(d.ID, d.Path, nil)
}

// AssetPath is the on-disk location of a named asset
func (d *Dir) AssetPath(name string) string {
	return filepath.Join(d.Path, name)
}

// AssetURI is the retrieval path of a named asset
func (d *Dir) AssetURI(name string) string {
	return path.Join(d.assetPrefix, d.ID, "asset", name)
}

// SavePNG writes img as a PNG asset and returns its URI
func (d *Dir) SavePNG(name string, img image.Image) (string, error) {
	if err := imaging.Save(img, d.AssetPath(name)); err != nil {
		return "", apperrors.NewAssetWriteFailedError(d.ID, name, err)
	}
	return d.AssetURI(name), nil
}

// WriteResult stores v as indented JSON in result.json and returns the file path
func (d *Dir) WriteResult(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	p := d.AssetPath(ResultFile)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", apperrors.NewAssetWriteFailedError(d.ID, ResultFile, err)
	}
	return p, nil
}

// ReadResult decodes result.json into v
func (d *Dir) ReadResult(v interface{}) error {
	data, err := os.ReadFile(d.AssetPath(ResultFile))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
