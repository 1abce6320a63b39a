package db

import (
	"context"
	"strings"
	"time"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

type mysqlDatabase struct {
	logger logger.Logger
	db     *gorm.DB
}

// pingTimeout bounds the connectivity check in NewMySQL
const pingTimeout = 5 * time.Second

// NewMySQL connects to MySQL through gorm and verifies the connection. A nil
// config uses DefaultMySQLConfig, which has no host and fails validation.
func NewMySQL(log logger.Logger, cfg *MySQLConfig) (Database, error) {
	if cfg == nil {
		cfg = DefaultMySQLConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	gdb, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: &gormLogger{
			logger:        log,
			level:         gormLogLevel(cfg.LogLevel),
			slowThreshold: cfg.SlowThreshold,
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, ErrConnection(err)
	}

	log.Info("mysql snapshot database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return &mysqlDatabase{logger: log, db: gdb}, nil
}

func gormLogLevel(level string) glogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return glogger.Silent
	case "error":
		return glogger.Error
	case "info":
		return glogger.Info
	default:
		return glogger.Warn
	}
}

func (m *mysqlDatabase) DB() (*gorm.DB, error) {
	if m.db == nil {
		return nil, ErrConnectionNotEstablished
	}
	return m.db, nil
}

func (m *mysqlDatabase) Ping(ctx context.Context) error {
	sqldb, err := m.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.PingContext(ctx)
}

func (m *mysqlDatabase) Close() error {
	sqldb, err := m.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	if err := sqldb.Close(); err != nil {
		return err
	}
	m.logger.Info("mysql snapshot database closed")
	return nil
}
