package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the form extraction worker
 *
 * Only job-level failures are errors. Field-level recognition problems
 * degrade to empty strings inside the pipeline and never surface here.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Fatal extraction errors
	ErrorInputNotFound     ErrorCode = "INPUT_NOT_FOUND"
	ErrorRasterizeFailed   ErrorCode = "RASTERIZE_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorAssetWriteFailed  ErrorCode = "ASSET_WRITE_FAILED"
	ErrorOCRFailed         ErrorCode = "OCR_FAILED"

	// Queue errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
)

// Sentinels for errors.Is checks against a code
var (
	ErrInputNotFound     = &ProcessingError{Code: ErrorInputNotFound}
	ErrRasterizeFailed   = &ProcessingError{Code: ErrorRasterizeFailed}
	ErrUnsupportedFormat = &ProcessingError{Code: ErrorUnsupportedFormat}
	ErrAssetWriteFailed  = &ProcessingError{Code: ErrorAssetWriteFailed}
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is matches any ProcessingError carrying the same code
func (e *ProcessingError) Is(target error) bool {
	t, ok := target.(*ProcessingError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewInputNotFoundError(jobID string, dir string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInputNotFound,
		Message:   "No input file found",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"job_dir": dir,
		},
		Cause: cause,
	}
}

func NewRasterizeFailedError(jobID string, inputPath string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorRasterizeFailed,
		Message:   "Failed to rasterize first page",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"input": inputPath,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, format string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", format),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"format": format,
		},
	}
}

func NewAssetWriteFailedError(jobID string, asset string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorAssetWriteFailed,
		Message:   fmt.Sprintf("Failed to write asset %s", asset),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"asset": asset,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(jobID string, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("OCR engine unavailable: %s", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

// ToMap converts error to map for the queue's error hash
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
