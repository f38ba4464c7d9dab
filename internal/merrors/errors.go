// Package merrors defines Miller's error taxonomy. It is named merrors
// rather than errors so it never shadows the standard library package it
// wraps. Every recoverable error in the pipeline is represented as a
// *Error carrying enough context (stage, file, operation) to be logged
// and surfaced as a structured warning instead of aborting the caller.
package merrors

import (
	"fmt"
	"time"
)

// Kind is the taxonomy named in the error-handling design.
type Kind string

const (
	UnsupportedLanguage Kind = "unsupported_language"
	ParseError          Kind = "parse_error"
	ExtractorError       Kind = "extractor_error"
	StoreError           Kind = "store_error"
	VectorStoreError     Kind = "vector_store_error"
	EmbedderUnavailable  Kind = "embedder_unavailable"
	ConcurrencyConflict  Kind = "concurrency_conflict"
	Cancelled            Kind = "cancelled"
	PermissionDenied     Kind = "permission_denied"
	IOError              Kind = "io_error"
)

// Recoverable reports whether errors of this kind should be logged and
// carried as a warning rather than failing the calling operation.
func (k Kind) Recoverable() bool {
	switch k {
	case StoreError, ConcurrencyConflict:
		return false
	default:
		return true
	}
}

// Error is Miller's structured error value.
type Error struct {
	Kind       Kind
	Operation  string
	FilePath   string
	NodeType   string // populated for ExtractorError
	Underlying error
	Timestamp  time.Time
}

// New creates an *Error for op, wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Operation: op, Underlying: err, Timestamp: time.Now()}
}

// WithFile attaches the file the error occurred on.
func (e *Error) WithFile(path string) *Error {
	e.FilePath = path
	return e
}

// WithNode attaches the tree-sitter node type for an ExtractorError.
func (e *Error) WithNode(nodeType string) *Error {
	e.NodeType = nodeType
	return e
}

func (e *Error) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *Error) Unwrap() error { return e.Underlying }

// Recoverable reports whether this specific error should degrade rather
// than abort.
func (e *Error) Recoverable() bool { return e.Kind.Recoverable() }
