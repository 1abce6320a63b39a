package accessor

import (
	"time"
)

// ResourceConfig holds configuration for a Resource
type ResourceConfig struct {
	// Name identifies the resource in logs
	// default: the cache key
	Name string `mapstructure:"name" yaml:"name"`
	// TTL is the lifetime of fetched values, 0 uses the store default
	// default: 0
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// RefreshInterval enables auto-refresh after Start, 0 disables it
	// default: 0
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	// RefreshTimeout caps each auto-refresh fetch, 0 leaves it to the fetch
	// function
	// default: 0
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout" yaml:"refresh_timeout"`
}

// DefaultResourceConfig returns the default configuration for a Resource
func DefaultResourceConfig() *ResourceConfig {
	return &ResourceConfig{}
}

// Validate validates the configuration
func (c *ResourceConfig) Validate() error {
	if c.TTL < 0 {
		return ErrInvalidConfig("ttl cannot be negative")
	}
	if c.RefreshInterval < 0 {
		return ErrInvalidConfig("refresh_interval cannot be negative")
	}
	if c.RefreshTimeout < 0 {
		return ErrInvalidConfig("refresh_timeout cannot be negative")
	}
	return nil
}
