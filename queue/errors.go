package queue

import (
	"fmt"
)

var (
	// ErrNilExecutor is returned when no executor is supplied
	ErrNilExecutor = fmt.Errorf("queue: executor is required")
	// ErrQueueStopped is returned when the queue is used after Stop
	ErrQueueStopped = fmt.Errorf("queue: queue is stopped")
	// ErrCleared is the outcome of operations dropped by ClearPendingOperations
	ErrCleared = fmt.Errorf("queue: operation cleared before execution")
	// ErrEmptyType is returned when an operation has no type
	ErrEmptyType = fmt.Errorf("queue: operation type is required")
)

// ErrInvalidConfig returns a configuration error
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("queue: invalid config: %s", msg)
}

// ErrInvalidMaxRetries returns an error for invalid max retries
func ErrInvalidMaxRetries(retries int) error {
	return fmt.Errorf("queue: invalid max retries: %d (must be >= 0)", retries)
}

// ErrEncodePayload wraps a payload serialization error
func ErrEncodePayload(typ string, err error) error {
	return fmt.Errorf("queue: encode payload of %s: %w", typ, err)
}

// ErrDecodePayload wraps a payload deserialization error
func ErrDecodePayload(id string, err error) error {
	return fmt.Errorf("queue: decode payload of operation %s: %w", id, err)
}

// ErrPersist wraps a snapshot save or load failure
func ErrPersist(err error) error {
	return fmt.Errorf("queue: persist snapshot: %w", err)
}

// AbandonedError reports an operation removed after exhausting its retries.
type AbandonedError struct {
	Operation Operation
	Err       error
}

func (e *AbandonedError) Error() string {
	return fmt.Sprintf("queue: operation %s (%s) abandoned after %d attempts: %v",
		e.Operation.ID, e.Operation.Type, e.Operation.Retries, e.Err)
}

func (e *AbandonedError) Unwrap() error {
	return e.Err
}
