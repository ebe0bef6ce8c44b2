package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrSupplierNotFound       = fmt.Errorf("supplier: %w", ErrNotFound)
	ErrTaskNotFound           = fmt.Errorf("persistence task: %w", ErrNotFound)
	ErrInvalidCoordinate      = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrUnsupportedRiskType    = fmt.Errorf("risk type: %w", ErrUnsupported)
	ErrUnsupportedFeatureType = fmt.Errorf("feature type: %w", ErrUnsupported)
	ErrInvalidTransition      = fmt.Errorf("pipeline transition: %w", ErrInternal)
	ErrQueueFull              = fmt.Errorf("persistence queue full: %w", ErrUnavailable)
	ErrQueueClosed            = fmt.Errorf("persistence queue closed: %w", ErrUnavailable)
	ErrModelNotLoaded         = fmt.Errorf("model not loaded: %w", ErrUnavailable)
	ErrReferenceNotLoaded     = fmt.Errorf("reference data not loaded: %w", ErrUnavailable)
	ErrStorageUnavailable     = fmt.Errorf("storage: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation error for %s: %s (constraint: %s)", e.Field, e.Message, e.Constraint)
	}
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// PipelineError is a single-image pipeline failure tagged with the stage
// that failed.
type PipelineError struct {
	ImageID string        // Image identifier
	Stage   PipelineState // State the pipeline was in when it failed
	Err     error         // Underlying error
}

// Error implements the error interface. The underlying message is kept
// verbatim so callers can surface it unchanged.
func (e *PipelineError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ModelError represents a failure inside a detection or assessment model.
type ModelError struct {
	Model string // Model name
	Op    string // load, predict, assess, factors
	Err   error  // Underlying error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s %s: %v", e.Model, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// ReferenceError reports an invalid reference dataset.
type ReferenceError struct {
	Source string // Dataset key or name
	Reason string
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference dataset %s: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying error type.
func (e *ReferenceError) Unwrap() error {
	return ErrInvalidInput
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
