package accessor

import (
	"errors"
	"fmt"
)

var (
	// ErrNilStore is returned when no cache store is supplied
	ErrNilStore = fmt.Errorf("accessor: cache store is required")
	// ErrNilFetch is returned when no fetch function is supplied
	ErrNilFetch = fmt.Errorf("accessor: fetch function is required")
	// ErrEmptyKey is returned for an empty cache key
	ErrEmptyKey = fmt.Errorf("accessor: cache key is required")
	// ErrResourceClosed is returned by a Resource after Close
	ErrResourceClosed = fmt.Errorf("accessor: resource is closed")
	// ErrFetchFailed marks a fetch failure with no cached fallback
	ErrFetchFailed = fmt.Errorf("accessor: fetch failed")
)

// ErrFetch wraps a fetch failure for key. The result matches both
// ErrFetchFailed and the underlying cause with errors.Is.
func ErrFetch(key string, err error) error {
	return fmt.Errorf("%w for %q: %w", ErrFetchFailed, key, err)
}

// ErrTypeMismatch reports a shared fetch that produced a different type
func ErrTypeMismatch(key string, got any) error {
	return fmt.Errorf("accessor: value for %q has unexpected type %T", key, got)
}

// IsFetchFailure reports whether err is a fetch failure without fallback.
func IsFetchFailure(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}

// ErrInvalidConfig returns a configuration error
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("accessor: invalid config: %s", msg)
}
