package cache

import (
	"context"
	"time"

	"github.com/dailyyoga/offline/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a shared remote key/value store. The offline layer uses it as a
// snapshot backend for the pending-operation queue so a fleet of devices
// behind one gateway can inspect each other's backlog.
type Redis interface {
	redis.UniversalClient
	// Unwrap returns the underlying go-redis client
	Unwrap() *redis.Client
}

// RedisConfig is the configuration for the Redis client
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	// default: 10
	PoolSize     int `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries" yaml:"max_retries"`
	// default: 5s
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DefaultRedisConfig returns the default configuration for the Redis client
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:        "localhost:6379",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns c
func (c *RedisConfig) MergeDefaults() *RedisConfig {
	defaults := DefaultRedisConfig()
	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	if c.PoolSize == 0 {
		c.PoolSize = defaults.PoolSize
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaults.DialTimeout
	}
	return c
}

// Validate validates the configuration
func (c *RedisConfig) Validate() error {
	switch {
	case c.Addr == "":
		return ErrInvalidRedisConfig("addr is required")
	case c.DB < 0:
		return ErrInvalidRedisConfig("db cannot be negative")
	case c.PoolSize < 0:
		return ErrInvalidRedisConfig("pool_size cannot be negative")
	case c.MinIdleConns < 0:
		return ErrInvalidRedisConfig("min_idle_conns cannot be negative")
	case c.MaxRetries < 0:
		return ErrInvalidRedisConfig("max_retries cannot be negative")
	case c.DialTimeout < 0:
		return ErrInvalidRedisConfig("dial_timeout cannot be negative")
	case c.ReadTimeout < 0:
		return ErrInvalidRedisConfig("read_timeout cannot be negative")
	case c.WriteTimeout < 0:
		return ErrInvalidRedisConfig("write_timeout cannot be negative")
	}
	return nil
}

// Options converts the configuration to go-redis options
func (c *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

type defaultRedis struct {
	*redis.Client
}

func (r *defaultRedis) Unwrap() *redis.Client {
	return r.Client
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(log logger.Logger, cfg *RedisConfig) (Redis, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	} else {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		cfg = cfg.MergeDefaults()
	}
	log = logger.OrNop(log)

	client := redis.NewClient(cfg.Options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, ErrRedisConnection(err)
	}

	log.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize),
	)
	return &defaultRedis{Client: client}, nil
}
