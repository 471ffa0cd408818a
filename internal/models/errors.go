package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotReady is returned by a search issued before anything was added.
	ErrIndexNotReady = errors.New("index not initialized: add documents first")

	// ErrNotFound indicates a registry record does not exist.
	ErrNotFound = errors.New("not found")
)

// ConfigurationError reports an invalid option or a missing credential.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError returns a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IngestionError reports a failure to ingest one file.
type IngestionError struct {
	File  string
	Stage string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.File, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// RetrievalError wraps a failed embedding, search, or generation call made while
// answering a question.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("query failed: %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
