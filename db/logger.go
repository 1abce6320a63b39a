package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dailyyoga/offline/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

// gormLogger routes gorm output to the data layer logger
type gormLogger struct {
	logger        logger.Logger
	level         glogger.LogLevel
	slowThreshold time.Duration
}

func (g *gormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(_ context.Context, msg string, data ...any) {
	if g.level >= glogger.Info {
		g.logger.Info(fmt.Sprintf(msg, data...), logger.Component("gorm"))
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	if g.level >= glogger.Warn {
		g.logger.Warn(fmt.Sprintf(msg, data...), logger.Component("gorm"))
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, data ...any) {
	if g.level >= glogger.Error {
		g.logger.Error(fmt.Sprintf(msg, data...), logger.Component("gorm"))
	}
}

// Trace logs failed and slow statements, and every statement at info level.
// A missing snapshot row is a normal miss, not an error.
func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if g.level <= glogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		logger.Component("gorm"),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= glogger.Error:
		g.logger.Error("sql error", append(fields, zap.Error(err))...)
	case g.slowThreshold != 0 && elapsed > g.slowThreshold && g.level >= glogger.Warn:
		g.logger.Warn("slow sql", append(fields, zap.Duration("threshold", g.slowThreshold))...)
	case g.level >= glogger.Info:
		g.logger.Info("sql trace", fields...)
	}
}
