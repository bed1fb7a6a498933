package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

// queryLogger sends GORM's output through the request logger, so a slow
// query carries the request id. Only slow queries and real errors are
// reported at the default level; record-not-found is an expected outcome.
type queryLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func newQueryLogger(slow time.Duration) gormlogger.Interface {
	return &queryLogger{level: gormlogger.Warn, slow: slow}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.WithCtx(ctx).Info("gorm: " + fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.WithCtx(ctx).Warn("gorm: " + fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.WithCtx(ctx).Error("gorm: " + fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	took := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		logger.WithCtx(ctx).Error("query failed", "sql", sql, "rows", rows, "took", took.String(), "error", err)
	case l.slow > 0 && took > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		logger.WithCtx(ctx).Warn("slow query", "sql", sql, "rows", rows, "took", took.String())
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		logger.WithCtx(ctx).Debug("query", "sql", sql, "rows", rows, "took", took.String())
	}
}
