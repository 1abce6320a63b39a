package cache

import (
	"fmt"
	"time"
)

// ErrInvalidDefaultTTL returns an error for an invalid default ttl
func ErrInvalidDefaultTTL(ttl time.Duration) error {
	return fmt.Errorf("cache: invalid default ttl: %v (must be > 0)", ttl)
}

// ErrInvalidCleanupInterval returns an error for an invalid cleanup interval
func ErrInvalidCleanupInterval(interval time.Duration) error {
	return fmt.Errorf("cache: invalid cleanup interval: %v (must be > 0)", interval)
}

// ErrInvalidRedisConfig returns an error for an invalid redis configuration
func ErrInvalidRedisConfig(msg string) error {
	return fmt.Errorf("cache: invalid redis config: %s", msg)
}

// ErrRedisConnection wraps a redis connection error
func ErrRedisConnection(err error) error {
	return fmt.Errorf("cache: redis connection failed: %w", err)
}
