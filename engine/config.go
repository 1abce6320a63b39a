package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/dailyyoga/offline/cache"
	"github.com/dailyyoga/offline/ch"
	"github.com/dailyyoga/offline/db"
	"github.com/dailyyoga/offline/kafka"
	"github.com/dailyyoga/offline/logger"
	"github.com/dailyyoga/offline/queue"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that also accepts day and week units ("1d", "2w3d")
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := str2duration.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("engine: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration of the data layer
type Config struct {
	// default: 5m
	DefaultTTL Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	// default: 10m
	CleanupInterval Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	// MaxRetries is kept when 0; nil uses 3
	MaxRetries *int `mapstructure:"max_retries" yaml:"max_retries"`
	// default: 10s
	OnlinePollInterval Duration `mapstructure:"online_poll_interval" yaml:"online_poll_interval"`
	// default: 24h
	SnapshotTTL Duration `mapstructure:"snapshot_ttl" yaml:"snapshot_ttl"`
	// default: "sync:pending_operations"
	SnapshotKey    string   `mapstructure:"snapshot_key" yaml:"snapshot_key"`
	ExecuteTimeout Duration `mapstructure:"execute_timeout" yaml:"execute_timeout"`
	// default: 5s
	PersistTimeout Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`

	// ProbeURL enables the HTTP reachability probe
	ProbeURL string `mapstructure:"probe_url" yaml:"probe_url"`
	// default: 3s
	ProbeTimeout Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`

	Logger *logger.Config `mapstructure:"logger" yaml:"logger"`

	// snapshot backends, the first one set wins: sqlite, redis, mysql;
	// none set keeps the snapshot in the cache store
	SQLite *db.SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Redis  *cache.RedisConfig `mapstructure:"redis" yaml:"redis"`
	MySQL  *db.MySQLConfig    `mapstructure:"mysql" yaml:"mysql"`

	Kafka      *KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
	ClickHouse *ch.Config   `mapstructure:"clickhouse" yaml:"clickhouse"`
}

// KafkaConfig wires the remote executor and the invalidation consumer
type KafkaConfig struct {
	// Producer and Topic enable publishing pending operations
	Producer *kafka.ProducerConfig `mapstructure:"producer" yaml:"producer"`
	Topic    string                `mapstructure:"topic" yaml:"topic"`
	// Invalidation enables consuming cache invalidation events
	Invalidation *kafka.ConsumerConfig `mapstructure:"invalidation" yaml:"invalidation"`
}

// DefaultConfig returns the default configuration with no backends
func DefaultConfig() *Config {
	retries := queue.DefaultConfig().MaxRetries
	return &Config{
		DefaultTTL:         Duration(5 * time.Minute),
		CleanupInterval:    Duration(10 * time.Minute),
		MaxRetries:         &retries,
		OnlinePollInterval: Duration(10 * time.Second),
		SnapshotTTL:        Duration(24 * time.Hour),
		SnapshotKey:        queue.DefaultSnapshotKey,
		PersistTimeout:     Duration(5 * time.Second),
		ProbeTimeout:       Duration(3 * time.Second),
	}
}

// MergeDefaults fills zero fields with default values and returns c
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.DefaultTTL == 0 {
		c.DefaultTTL = d.DefaultTTL
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.MaxRetries == nil {
		c.MaxRetries = d.MaxRetries
	}
	if c.OnlinePollInterval == 0 {
		c.OnlinePollInterval = d.OnlinePollInterval
	}
	if c.SnapshotTTL == 0 {
		c.SnapshotTTL = d.SnapshotTTL
	}
	if c.SnapshotKey == "" {
		c.SnapshotKey = d.SnapshotKey
	}
	if c.PersistTimeout == 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}

// Validate checks the engine fields; backend blocks are validated by their
// constructors
func (c *Config) Validate() error {
	if err := c.cacheConfig().Validate(); err != nil {
		return err
	}
	if err := c.queueConfig().Validate(); err != nil {
		return err
	}
	if c.ProbeTimeout <= 0 {
		return ErrInvalidConfig("probe_timeout must be > 0")
	}
	if c.Kafka != nil && c.Kafka.Producer != nil && c.Kafka.Topic == "" {
		return ErrInvalidConfig("kafka.topic is required with kafka.producer")
	}
	return nil
}

func (c *Config) cacheConfig() *cache.Config {
	return &cache.Config{
		DefaultTTL:      c.DefaultTTL.Std(),
		CleanupInterval: c.CleanupInterval.Std(),
	}
}

func (c *Config) queueConfig() *queue.Config {
	return &queue.Config{
		MaxRetries:         *c.MaxRetries,
		OnlinePollInterval: c.OnlinePollInterval.Std(),
		SnapshotKey:        c.SnapshotKey,
		SnapshotTTL:        c.SnapshotTTL.Std(),
		ExecuteTimeout:     c.ExecuteTimeout.Std(),
		PersistTimeout:     c.PersistTimeout.Std(),
	}
}

// LoadConfig decodes a YAML document, fills defaults and validates it
func LoadConfig(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, ErrLoadConfig(err)
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
