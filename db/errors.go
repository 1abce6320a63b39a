package db

import "fmt"

var (
	// ErrConnectionNotEstablished database connection not established
	ErrConnectionNotEstablished = fmt.Errorf("db: database connection not established")
)

// ErrInvalidConfig invalid config
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("db: invalid config: %s", msg)
}

// ErrConnection database connection error
func ErrConnection(err error) error {
	return fmt.Errorf("db: connection failed: %w", err)
}

// ErrMigrate schema creation error
func ErrMigrate(err error) error {
	return fmt.Errorf("db: migrate snapshot table: %w", err)
}

// ErrSnapshot wraps a snapshot read or write failure for key
func ErrSnapshot(op, key string, err error) error {
	return fmt.Errorf("db: %s snapshot %s: %w", op, key, err)
}
