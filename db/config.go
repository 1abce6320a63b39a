package db

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MySQLConfig configures the MySQL snapshot backend and its connection pool
type MySQLConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	// default: 3306
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	// default: 10
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	// default: 5
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	// default: 30m
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// default: 10m
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	// LogLevel is the gorm log level: silent, error, warn or info
	// default: "warn"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	// default: 1s
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
	// default: "utf8mb4"
	Charset string `mapstructure:"charset" yaml:"charset"`
	// default: "UTC"
	Loc string `mapstructure:"loc" yaml:"loc"`
}

// DSN returns the go-sql-driver data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
		c.Charset, c.Loc,
	)
}

// DefaultMySQLConfig returns the default MySQL configuration
func DefaultMySQLConfig() *MySQLConfig {
	return &MySQLConfig{
		Port:            3306,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		LogLevel:        "warn",
		SlowThreshold:   time.Second,
		Charset:         "utf8mb4",
		Loc:             "UTC",
	}
}

var validLogLevels = []string{"silent", "error", "warn", "info"}

// Validate validates the MySQL configuration
func (c *MySQLConfig) Validate() error {
	if c.Host == "" {
		return ErrInvalidConfig("host is required")
	}
	if c.Port <= 0 {
		return ErrInvalidConfig("port is required")
	}
	if c.User == "" {
		return ErrInvalidConfig("user is required")
	}
	if c.Database == "" {
		return ErrInvalidConfig("database is required")
	}
	if !slices.ContainsFunc(validLogLevels, func(level string) bool {
		return strings.EqualFold(c.LogLevel, level)
	}) {
		return ErrInvalidConfig(fmt.Sprintf("log_level %q must be one of: %s", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	return nil
}

// MergeDefaults fills zero fields with default values and returns c
func (c *MySQLConfig) MergeDefaults() *MySQLConfig {
	defaults := DefaultMySQLConfig()
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaults.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = defaults.MaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = defaults.SlowThreshold
	}
	if c.Charset == "" {
		c.Charset = defaults.Charset
	}
	if c.Loc == "" {
		c.Loc = defaults.Loc
	}
	return c
}

// SQLiteConfig configures the on-disk snapshot backend
type SQLiteConfig struct {
	// Path is the database file, ":memory:" keeps it in memory
	Path string `mapstructure:"path" yaml:"path"`
	// BusyTimeout is how long a write waits on a locked database
	// default: 5s
	BusyTimeout time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default SQLite configuration
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "offline.db",
		BusyTimeout: 5 * time.Second,
	}
}

// MergeDefaults fills zero fields with default values and returns c
func (c *SQLiteConfig) MergeDefaults() *SQLiteConfig {
	defaults := DefaultSQLiteConfig()
	if c.Path == "" {
		c.Path = defaults.Path
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaults.BusyTimeout
	}
	return c
}

// Validate validates the SQLite configuration
func (c *SQLiteConfig) Validate() error {
	if c.Path == "" {
		return ErrInvalidConfig("path is required")
	}
	if c.BusyTimeout < 0 {
		return ErrInvalidConfig("busy_timeout cannot be negative")
	}
	return nil
}
