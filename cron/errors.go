package cron

import (
	"fmt"
	"time"
)

var (
	// ErrNoTasks is returned when a chain has no tasks
	ErrNoTasks = fmt.Errorf("cron: no tasks provided")
)

// ErrSpec wraps a rejected cron spec
func ErrSpec(name, spec string, err error) error {
	return fmt.Errorf("cron: invalid spec %q for chain %s: %w", spec, name, err)
}

// ErrInvalidInterval returns an error for a non-positive interval
func ErrInvalidInterval(d time.Duration) error {
	return fmt.Errorf("cron: invalid interval: %s (must be > 0)", d)
}
