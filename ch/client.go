package ch

import (
	"context"
	"fmt"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
)

type defaultClient struct {
	config *Config
	logger logger.Logger
	conn   driver.Conn

	writer     Writer
	writerOnce sync.Once

	closed bool
	mu     sync.RWMutex
}

// NewClient connects to ClickHouse and verifies the connection
func NewClient(log logger.Logger, config *Config) (Client, error) {
	log = logger.OrNop(log)
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.MergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: config.Hosts,
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		DialTimeout: config.DialTimeout,
		Settings:    config.Settings,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, ErrConnection(err)
	}

	log.Info("clickhouse client initialized",
		zap.Strings("hosts", config.Hosts),
		zap.String("database", config.Database),
		zap.String("table", config.Table),
	)

	return &defaultClient{
		config: config,
		logger: log,
		conn:   conn,
	}, nil
}

// Writer returns the lazily created batch writer, or ErrWriterDisabled when
// no WriterConfig is set
func (c *defaultClient) Writer() (Writer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.config.WriterConfig == nil {
		return nil, ErrWriterDisabled
	}

	c.writerOnce.Do(func() {
		c.writer = newWriter(c.logger, c.config.Table, c.config.WriterConfig, connInsert(c.conn, c.config.Table))
	})
	return c.writer, nil
}

// createTableSQL returns the DDL of the audit table
func createTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` ("+
		"event LowCardinality(String), "+
		"operation_id String, "+
		"operation_type LowCardinality(String), "+
		"attempt UInt32, "+
		"error String, "+
		"at DateTime64(3)"+
		") ENGINE = MergeTree ORDER BY (operation_type, at)", table)
}

func (c *defaultClient) EnsureTable(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if err := c.conn.Exec(ctx, createTableSQL(c.config.Table)); err != nil {
		return fmt.Errorf("ch: create table %s: %w", c.config.Table, err)
	}
	return nil
}

func (c *defaultClient) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}

	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		c.logger.Error("query failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	return rows, nil
}

// QueryRow returns nil when the client is closed
func (c *defaultClient) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.logger.Error("connection is closed", zap.String("query", query))
		return nil
	}
	return c.conn.QueryRow(ctx, query, args...)
}

// Close flushes the writer, if any, then closes the connection
func (c *defaultClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.writer != nil {
		if err := c.writer.Close(); err != nil {
			c.logger.Error("failed to close writer", zap.Error(err))
		}
	}
	if err := c.conn.Close(); err != nil {
		return ErrConnection(err)
	}
	c.logger.Info("clickhouse client closed")
	return nil
}
