package engine

import "fmt"

// ErrEngineClosed is returned by Start after Close
var ErrEngineClosed = fmt.Errorf("engine: closed")

// ErrInvalidConfig invalid config
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("engine: invalid config: %s", msg)
}

// ErrLoadConfig config decoding error
func ErrLoadConfig(err error) error {
	return fmt.Errorf("engine: load config: %w", err)
}

// ErrBackend wraps a failure opening a configured backend
func ErrBackend(name string, err error) error {
	return fmt.Errorf("engine: open %s: %w", name, err)
}
