package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/transconnect-go/pkg/logger"
	"github.com/transconnect-go/pkg/metrics"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold is used when the configured threshold is zero.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// QueryLogger routes gorm's logging through the service logger. Slow
// queries are reported at warn level and every query is timed.
type QueryLogger struct {
	log           logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	logAll        bool
}

func NewQueryLogger(log logger.Logger, slowThreshold time.Duration, logAll bool) *QueryLogger {
	if log == nil {
		log = logger.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowQueryThreshold
	}
	return &QueryLogger{
		log:           log,
		level:         gormlogger.Warn,
		slowThreshold: slowThreshold,
		logAll:        logAll,
	}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *QueryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *QueryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *QueryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *QueryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	metrics.DatabaseQueryDuration.WithLabelValues(operation(err)).Observe(elapsed.Seconds())

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		sql, rows := fc()
		l.log.Error("query failed", "error", err, "sql", sql, "rows", rows, "duration", elapsed)
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query detected", "sql", sql, "rows", rows, "duration", elapsed, "threshold", l.slowThreshold)
	case l.logAll:
		sql, rows := fc()
		l.log.Debug("query", "sql", sql, "rows", rows, "duration", elapsed)
	}
}

func operation(err error) string {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "error"
	}
	return "ok"
}
