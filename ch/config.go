package ch

import (
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type Config struct {
	Hosts       []string      `mapstructure:"hosts" yaml:"hosts"`
	Database    string        `mapstructure:"database" yaml:"database"`
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	// Table receives the audit rows
	// default: "offline_sync_events"
	Table string `mapstructure:"table" yaml:"table"`
	// clickhouse settings (https://clickhouse.com/docs/operations/settings/settings)
	Settings clickhouse.Settings `mapstructure:"settings" yaml:"settings"`
	// WriterConfig enables the batch writer
	WriterConfig *WriterConfig `mapstructure:"writer" yaml:"writer"`
}

type WriterConfig struct {
	// FlushInterval flushes whatever is buffered
	// default: 5s
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	// FlushSize flushes as soon as this many rows are buffered
	// default: 1000
	FlushSize int `mapstructure:"flush_size" yaml:"flush_size"`
	// InsertTimeout bounds a single batch insert
	// default: 10s
	InsertTimeout time.Duration `mapstructure:"insert_timeout" yaml:"insert_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Database:    "default",
		DialTimeout: 10 * time.Second,
		Table:       "offline_sync_events",
	}
}

// DefaultWriterConfig returns the default writer config
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		FlushInterval: 5 * time.Second,
		FlushSize:     1000,
		InsertTimeout: 10 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns c
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.Table == "" {
		c.Table = d.Table
	}
	if c.WriterConfig != nil {
		c.WriterConfig.mergeDefaults()
	}
	return c
}

func (w *WriterConfig) mergeDefaults() {
	d := DefaultWriterConfig()
	if w.FlushInterval == 0 {
		w.FlushInterval = d.FlushInterval
	}
	if w.FlushSize == 0 {
		w.FlushSize = d.FlushSize
	}
	if w.InsertTimeout == 0 {
		w.InsertTimeout = d.InsertTimeout
	}
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return ErrInvalidConfig("hosts are required")
	}
	if c.Username == "" {
		return ErrInvalidConfig("username is required")
	}
	if !tableNamePattern.MatchString(c.Table) {
		return ErrInvalidTable
	}
	if c.WriterConfig != nil {
		return c.WriterConfig.Validate()
	}
	return nil
}

func (w *WriterConfig) Validate() error {
	if w.FlushInterval <= 0 {
		return ErrInvalidConfig("writer.flush_interval is required")
	}
	if w.FlushSize <= 0 {
		return ErrInvalidConfig("writer.flush_size is required")
	}
	if w.InsertTimeout <= 0 {
		return ErrInvalidConfig("writer.insert_timeout is required")
	}
	return nil
}
