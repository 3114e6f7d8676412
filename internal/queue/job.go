package queue

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/adverant/nexus/formextract-worker/internal/errors"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/processor"
)

// TaskExtractForm is the asynq task type for form extraction
const TaskExtractForm = "extract-form"

// DefaultProcessingTimeout applies when no timeout is configured
const DefaultProcessingTimeout = 300000 * time.Millisecond

// JobMessage is the queue payload: the id of a job directory that already holds its input
type JobMessage struct {
	JobID string `json:"jobId"`
}

// DecodeJobMessage accepts {"jobId": "..."} or a bare job id
func DecodeJobMessage(data []byte) (JobMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return JobMessage{}, fmt.Errorf("empty job message")
	}

	var msg JobMessage
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return JobMessage{}, fmt.Errorf("failed to unmarshal job message: %w", err)
		}
	} else {
		msg.JobID = string(trimmed)
	}

	msg.JobID = strings.TrimSpace(msg.JobID)
	if msg.JobID == "" {
		return JobMessage{}, fmt.Errorf("job message has no jobId")
	}
	return msg, nil
}

// Encode renders the message as JSON
func (m JobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// StatusTracker records job state transitions outside the job directory
type StatusTracker interface {
	MarkProcessing(ctx context.Context, jobID string)
	MarkCompleted(ctx context.Context, jobID string, result *processor.ProcessResult)
	MarkFailed(ctx context.Context, jobID string, err error)
}

// statusTimeout bounds each status write made after a job finishes
const statusTimeout = 5 * time.Second

// statusContext detaches ctx from consumer shutdown so a finished job is
// always recorded
func statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
}

// jobRunner runs one job with a reporting deadline. Extraction is not
// interrupted by the deadline or by consumer shutdown; a timed-out job
// finishes in the background and its late completion is logged.
type jobRunner struct {
	processor processor.JobProcessor
	timeout   time.Duration
	logger    *logging.Logger
}

func newJobRunner(p processor.JobProcessor, timeoutMs int64, logger *logging.Logger) *jobRunner {
	timeout := DefaultProcessingTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &jobRunner{processor: p, timeout: timeout, logger: logger}
}

type outcome struct {
	result *processor.ProcessResult
	err    error
}

func (r *jobRunner) run(ctx context.Context, jobID string) (*processor.ProcessResult, error) {
	start := time.Now()
	r.logger.Infof("[Job %s] Processing timeout set to: %v", jobID, r.timeout)

	done := make(chan outcome, 1)
	go func() {
		res, err := r.processor.ProcessJob(context.WithoutCancel(ctx), jobID)
		done <- outcome{result: res, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			r.logger.Error("job failed", "job", jobID, "duration", time.Since(start).String(), "error", o.err)
			return nil, o.err
		}
		r.logger.Infof("[Job %s] Processing completed in %v (rows=%d, unrecognized cells=%d)",
			jobID, time.Since(start), o.result.RowsExtracted, o.result.UnrecognizedCells)
		return o.result, nil
	case <-timer.C:
		r.logger.Warn("job timed out", "job", jobID, "timeout", r.timeout.String())
		go r.reportLate(jobID, start, done)
		return nil, apperrors.NewProcessingTimeoutError(jobID, r.timeout, context.DeadlineExceeded)
	}
}

// reportLate logs the outcome of a job already reported as timed out
func (r *jobRunner) reportLate(jobID string, start time.Time, done <-chan outcome) {
	o := <-done
	if o.err != nil {
		r.logger.Warn("timed-out job finished with error", "job", jobID,
			"duration", time.Since(start).String(), "error", o.err)
		return
	}
	r.logger.Warn("timed-out job finished after failure was recorded", "job", jobID,
		"duration", time.Since(start).String(), "resultPath", o.result.ResultPath)
}

// errorDetails renders err for status storage
func errorDetails(err error) map[string]interface{} {
	var pe *apperrors.ProcessingError
	if stderrors.As(err, &pe) {
		return pe.ToMap()
	}
	return map[string]interface{}{"error": err.Error()}
}
