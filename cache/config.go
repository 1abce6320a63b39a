package cache

import "time"

// Config holds configuration for the cache Store
type Config struct {
	// DefaultTTL is used by Set when no positive ttl is given
	// default: 5 * time.Minute
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	// CleanupInterval is how often the owner should run Cleanup
	// default: 10 * time.Minute
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// DefaultConfig returns the default configuration for the cache Store
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// MergeDefaults fills zero fields with default values and returns c
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.DefaultTTL == 0 {
		c.DefaultTTL = defaults.DefaultTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return ErrInvalidDefaultTTL(c.DefaultTTL)
	}
	if c.CleanupInterval <= 0 {
		return ErrInvalidCleanupInterval(c.CleanupInterval)
	}
	return nil
}
