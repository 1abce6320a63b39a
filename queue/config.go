package queue

import "time"

// DefaultSnapshotKey is the reserved key the queue snapshot is stored under.
const DefaultSnapshotKey = "sync:pending_operations"

// Config holds configuration for the sync queue
type Config struct {
	// MaxRetries is how many times a failed operation is retried before it
	// is abandoned; an operation is attempted at most MaxRetries+1 times
	// default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// OnlinePollInterval is the cadence of the online probe and of retry
	// passes over operations left pending
	// default: 10 * time.Second
	OnlinePollInterval time.Duration `mapstructure:"online_poll_interval" yaml:"online_poll_interval"`
	// SnapshotKey is the persister key of the queue snapshot
	// default: "sync:pending_operations"
	SnapshotKey string `mapstructure:"snapshot_key" yaml:"snapshot_key"`
	// SnapshotTTL bounds how long a cache-backed snapshot survives
	// default: 24 * time.Hour
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" yaml:"snapshot_ttl"`
	// ExecuteTimeout caps a single executor call, 0 leaves it to the executor
	// default: 0
	ExecuteTimeout time.Duration `mapstructure:"execute_timeout" yaml:"execute_timeout"`
	// PersistTimeout caps a single snapshot save or load
	// default: 5 * time.Second
	PersistTimeout time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
}

// DefaultConfig returns the default configuration for the sync queue
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:         3,
		OnlinePollInterval: 10 * time.Second,
		SnapshotKey:        DefaultSnapshotKey,
		SnapshotTTL:        24 * time.Hour,
		PersistTimeout:     5 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns c.
// MaxRetries of 0 is a valid setting and is kept.
func (c *Config) MergeDefaults() *Config {
	defaults := DefaultConfig()
	if c.OnlinePollInterval == 0 {
		c.OnlinePollInterval = defaults.OnlinePollInterval
	}
	if c.SnapshotKey == "" {
		c.SnapshotKey = defaults.SnapshotKey
	}
	if c.SnapshotTTL == 0 {
		c.SnapshotTTL = defaults.SnapshotTTL
	}
	if c.PersistTimeout == 0 {
		c.PersistTimeout = defaults.PersistTimeout
	}
	return c
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries(c.MaxRetries)
	}
	if c.OnlinePollInterval <= 0 {
		return ErrInvalidConfig("online_poll_interval must be > 0")
	}
	if c.SnapshotKey == "" {
		return ErrInvalidConfig("snapshot_key is required")
	}
	if c.SnapshotTTL <= 0 {
		return ErrInvalidConfig("snapshot_ttl must be > 0")
	}
	if c.ExecuteTimeout < 0 {
		return ErrInvalidConfig("execute_timeout cannot be negative")
	}
	if c.PersistTimeout <= 0 {
		return ErrInvalidConfig("persist_timeout must be > 0")
	}
	return nil
}
