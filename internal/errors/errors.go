package errors

import (
	stderrors "errors"
	"fmt"
)

// PipelineError is the structured error type for docrag.
// It provides rich context for error handling, logging, and user presentation.
type PipelineError struct {
	// Code is the unique error code (e.g., "ERR_502_EMBEDDING_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Stage is the pipeline stage that failed, when known
	// (e.g., "Embedding", "Searching", "Synthesizing").
	Stage string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with PipelineError.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithStage records the pipeline stage that produced the error.
// Returns the error for method chaining.
func (e *PipelineError) WithStage(stage string) *PipelineError {
	e.Stage = stage
	return e
}

// New creates a new PipelineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PipelineError from an existing error.
// The error's message becomes the PipelineError message.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ChunkingError creates a document-chunking error.
// Chunking failures are isolated per document and never abort a batch.
func ChunkingError(message string, cause error) *PipelineError {
	return New(ErrCodeChunkingFailed, message, cause)
}

// EmbeddingError creates an embedding-model error.
func EmbeddingError(message string, cause error) *PipelineError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// SearchError creates a vector-search error.
func SearchError(message string, cause error) *PipelineError {
	return New(ErrCodeSearchFailed, message, cause)
}

// SynthesisError creates a generation-model error.
func SynthesisError(message string, cause error) *PipelineError {
	return New(ErrCodeSynthesisFailed, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *PipelineError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *PipelineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PipelineError {
	return New(ErrCodeInternal, message, cause)
}

// FromError extracts the PipelineError from anywhere in the error chain,
// so wrapped errors keep their code, stage and retryable flag.
func FromError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if the error chain contains a PipelineError with the
// Retryable flag set.
func IsRetryable(err error) bool {
	if pe, ok := FromError(err); ok {
		return pe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if pe, ok := FromError(err); ok {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a PipelineError.
// Returns empty string if the chain holds no PipelineError.
func GetCode(err error) string {
	if pe, ok := FromError(err); ok {
		return pe.Code
	}
	return ""
}

// GetStage extracts the failed stage from a PipelineError.
// Returns empty string if the chain holds no PipelineError or no stage
// was recorded.
func GetStage(err error) string {
	if pe, ok := FromError(err); ok {
		return pe.Stage
	}
	return ""
}
