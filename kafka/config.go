package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ConsumerConfig configures the invalidation consumer
type ConsumerConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	GroupID string   `mapstructure:"group_id" yaml:"group_id"`
	Topics  []string `mapstructure:"topics" yaml:"topics"`

	// MaxRetries is how many times a message handler is tried
	// default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// InstanceNum is the number of consumer instances in the group
	// default: 1
	InstanceNum int `mapstructure:"instance_num" yaml:"instance_num"`

	// AutoOffsetReset is "earliest" or "latest"
	// default: "latest"
	AutoOffsetReset string `mapstructure:"auto_offset_reset" yaml:"auto_offset_reset"`

	// default: false
	EnableAutoCommit bool `mapstructure:"enable_auto_commit" yaml:"enable_auto_commit"`

	// default: 5s
	AutoCommitInterval time.Duration `mapstructure:"auto_commit_interval" yaml:"auto_commit_interval"`

	// default: 30s
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	// default: 120s
	MaxPollInterval time.Duration `mapstructure:"max_poll_interval" yaml:"max_poll_interval"`

	// PollTimeout bounds each poll so the loop notices cancellation
	// default: 500ms
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`

	// only PLAINTEXT is supported for now
	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol" yaml:"security_protocol"`
}

// DefaultConsumerConfig returns the default consumer configuration
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		MaxRetries:         3,
		InstanceNum:        1,
		AutoOffsetReset:    "latest",
		AutoCommitInterval: 5 * time.Second,
		SessionTimeout:     30 * time.Second,
		MaxPollInterval:    120 * time.Second,
		PollTimeout:        500 * time.Millisecond,
		SecurityProtocol:   "PLAINTEXT",
	}
}

// MergeDefaults fills zero fields with default values and returns c
func (c *ConsumerConfig) MergeDefaults() *ConsumerConfig {
	d := DefaultConsumerConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InstanceNum == 0 {
		c.InstanceNum = d.InstanceNum
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = d.AutoOffsetReset
	}
	if c.AutoCommitInterval == 0 {
		c.AutoCommitInterval = d.AutoCommitInterval
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.MaxPollInterval == 0 {
		c.MaxPollInterval = d.MaxPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = d.SecurityProtocol
	}
	return c
}

// Validate validates the consumer configuration
func (c *ConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.GroupID == "" {
		return ErrInvalidConfig("group_id is required")
	}
	if len(c.Topics) == 0 {
		return ErrInvalidConfig("topics are required")
	}
	if c.AutoOffsetReset != "earliest" && c.AutoOffsetReset != "latest" {
		return ErrInvalidConfig(
			fmt.Sprintf("invalid auto_offset_reset: %s, must be either 'earliest' or 'latest'", c.AutoOffsetReset),
		)
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidConfig("max_retries must be greater than 0")
	}
	if c.InstanceNum <= 0 {
		return ErrInvalidConfig("instance_num must be greater than 0")
	}
	if c.EnableAutoCommit && c.AutoCommitInterval <= 0 {
		return ErrInvalidConfig("auto_commit_interval must be greater than 0 when enable_auto_commit is true")
	}
	if c.SessionTimeout <= 0 || c.MaxPollInterval <= 0 || c.PollTimeout <= 0 {
		return ErrInvalidConfig("session_timeout, max_poll_interval and poll_timeout must be greater than 0")
	}
	return nil
}

// BuildConfigMap returns the librdkafka configuration
func (c *ConsumerConfig) BuildConfigMap() *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":    strings.Join(c.Brokers, ","),
		"group.id":             c.GroupID,
		"auto.offset.reset":    strings.ToLower(c.AutoOffsetReset),
		"enable.auto.commit":   c.EnableAutoCommit,
		"session.timeout.ms":   int(c.SessionTimeout.Milliseconds()),
		"max.poll.interval.ms": int(c.MaxPollInterval.Milliseconds()),
		"security.protocol":    c.SecurityProtocol,
	}
	if c.EnableAutoCommit {
		_ = configMap.SetKey("auto.commit.interval.ms", int(c.AutoCommitInterval.Milliseconds()))
	}
	return configMap
}

// ProducerConfig configures the operation producer
type ProducerConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`

	// ClientID identifies the producer in broker logs
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// Acks is "all", "1" or "0"; queued operations need "all"
	// default: "all"
	Acks string `mapstructure:"acks" yaml:"acks"`

	// Compression is none, gzip, snappy, lz4 or zstd
	// default: "none"
	Compression string `mapstructure:"compression" yaml:"compression"`

	// default: 0
	LingerMs int `mapstructure:"linger_ms" yaml:"linger_ms"`

	// default: 100KB
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`

	// EnableIdempotence lets the broker drop duplicates of a retried send
	// default: true
	EnableIdempotence *bool `mapstructure:"enable_idempotence" yaml:"enable_idempotence"`

	// default: "PLAINTEXT"
	SecurityProtocol string `mapstructure:"security_protocol" yaml:"security_protocol"`

	// MaxRetries is the client-level send retry count
	// default: 3
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// DefaultProducerConfig returns the default producer configuration
func DefaultProducerConfig() *ProducerConfig {
	idempotent := true
	return &ProducerConfig{
		Acks:              "all",
		Compression:       "none",
		BatchSize:         100 * 1024,
		EnableIdempotence: &idempotent,
		SecurityProtocol:  "PLAINTEXT",
		MaxRetries:        3,
	}
}

// MergeDefaults fills zero fields with default values and returns p
func (p *ProducerConfig) MergeDefaults() *ProducerConfig {
	d := DefaultProducerConfig()
	if p.Acks == "" {
		p.Acks = d.Acks
	}
	if p.Compression == "" {
		p.Compression = d.Compression
	}
	if p.BatchSize == 0 {
		p.BatchSize = d.BatchSize
	}
	if p.EnableIdempotence == nil {
		p.EnableIdempotence = d.EnableIdempotence
	}
	if p.SecurityProtocol == "" {
		p.SecurityProtocol = d.SecurityProtocol
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

// Validate validates the producer configuration
func (p *ProducerConfig) Validate() error {
	if len(p.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if p.EnableIdempotence != nil && *p.EnableIdempotence && strings.ToLower(p.Acks) != "all" && p.Acks != "-1" {
		return ErrInvalidConfig("enable_idempotence requires acks=all")
	}
	return nil
}

// BuildConfigMap returns the librdkafka configuration
func (p *ProducerConfig) BuildConfigMap() *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(p.Brokers, ","),
		"compression.type":  strings.ToLower(p.Compression),
		"acks":              strings.ToLower(p.Acks),
		"linger.ms":         p.LingerMs,
		"batch.size":        p.BatchSize,
		"retries":           p.MaxRetries,
		"security.protocol": p.SecurityProtocol,
	}
	if p.EnableIdempotence != nil {
		_ = configMap.SetKey("enable.idempotence", *p.EnableIdempotence)
	}
	if p.ClientID != "" {
		_ = configMap.SetKey("client.id", p.ClientID)
	}
	return configMap
}
