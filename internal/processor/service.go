package processor

import (
	"context"
	"time"

	"github.com/adverant/nexus/formextract-worker/internal/jobs"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
)

// JobProcessor processes a stored job by id
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) (*ProcessResult, error)
}

// Service resolves job ids against the store, runs the extractor and
// persists result.json next to the assets.
type Service struct {
	store     *jobs.Store
	extractor *Extractor
	logger    *logging.Logger
}

// NewService creates a job processing service
func NewService(store *jobs.Store, extractor *Extractor, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewLogger("processor")
	}
	return &Service{store: store, extractor: extractor, logger: logger}
}

// ProcessJob extracts the job's input and writes result.json
func (s *Service) ProcessJob(ctx context.Context, jobID string) (*ProcessResult, error) {
	dir, err := s.store.Open(jobID)
	if err != nil {
		return nil, err
	}
	return s.ProcessDir(ctx, dir)
}

// ProcessDir is ProcessJob for an already opened job directory
func (s *Service) ProcessDir(ctx context.Context, dir *jobs.Dir) (*ProcessResult, error) {
	start := time.Now()

	result, err := s.extractor.Extract(ctx, dir)
	if err != nil {
		return nil, err
	}
	path, err := dir.WriteResult(result)
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		JobID:             dir.ID,
		Template:          result.Template,
		ResultPath:        path,
		RowsExtracted:     len(result.Rows),
		UnrecognizedCells: countUnrecognized(result.Rows),
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	}, nil
}
