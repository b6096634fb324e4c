package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why processing of a single URL stopped.
type FailureKind string

const (
	// FailureFetch covers network errors, timeouts and non-2xx responses.
	FailureFetch FailureKind = "fetch"

	// FailureStorage covers failed writes to the storage gateway.
	FailureStorage FailureKind = "storage"

	// FailureInternal covers anything else, including recovered panics.
	FailureInternal FailureKind = "internal"
)

// FetchError is returned when a URL could not be fetched successfully.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because a deadline was exceeded.
func (e *FetchError) Timeout() bool {
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// StorageError is returned when a record could not be written.
type StorageError struct {
	URL string
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s for %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying storage error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ClassifyFailure maps an error returned by the page pipeline to its kind.
func ClassifyFailure(err error) FailureKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return FailureFetch
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return FailureStorage
	}
	return FailureInternal
}
