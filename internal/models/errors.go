package models

import (
	"fmt"
	"strings"
)

// UnsupportedFormatError is returned for a location with no URL scheme and an
// extension no loader handles. It only fails that one document.
type UnsupportedFormatError struct {
	Location  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported document format: %s has no extension", e.Location)
	}
	return fmt.Sprintf("unsupported document format: %s", e.Extension)
}

// DocumentFailure records why one location could not be ingested.
type DocumentFailure struct {
	Location string
	Err      error
}

// NoDocumentsProcessedError means every document in a request failed.
type NoDocumentsProcessedError struct {
	Failures []DocumentFailure
}

func (e *NoDocumentsProcessedError) Error() string {
	if len(e.Failures) == 0 {
		return "no documents processed: no document locations given"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Location, f.Err))
	}
	return "no documents processed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-document causes to errors.Is and errors.As.
func (e *NoDocumentsProcessedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IndexUnavailableError means the index could not be built, usually because
// the embedding backend failed. Nothing is persisted when it is returned.
type IndexUnavailableError struct {
	Key string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index %s unavailable: %v", e.Key, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// ModelCallError wraps a failed model invocation for a single question.
type ModelCallError struct {
	Question string
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }
