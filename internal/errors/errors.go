// Package errors defines the typed error taxonomy shared by the ingestion
// pipeline; callers classify failures by Kind to decide whether a job fails,
// a device is skipped, or a chunk write is retried.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an ingestion error.
type Kind int

const (
	// KindUnknown covers errors that did not originate in this package.
	KindUnknown Kind = iota
	// KindValidation rejects a request before any processing begins.
	KindValidation
	// KindIncompleteUpload means assembly was attempted with chunks missing.
	KindIncompleteUpload
	// KindStorage is a disk or chunk-store failure.
	KindStorage
	// KindArchiveRead means the archive or one of its entries is unreadable.
	KindArchiveRead
	// KindPersistence is a database write failure.
	KindPersistence
	// KindCancelled is a caller-initiated abort, not a failure.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindIncompleteUpload:
		return "incomplete_upload"
	case KindStorage:
		return "storage"
	case KindArchiveRead:
		return "archive_read"
	case KindPersistence:
		return "persistence"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a classified ingestion error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsCancelled reports whether err is a caller-initiated abort, including a
// plain context cancellation.
func IsCancelled(err error) bool {
	return Is(err, KindCancelled) || errors.Is(err, context.Canceled)
}
