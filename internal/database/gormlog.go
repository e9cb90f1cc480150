package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSlowQuery is used when no slow-query threshold is configured.
const DefaultSlowQuery = 200 * time.Millisecond

// gormLogger routes GORM output through slog so SQL errors carry the request
// and actor ids attached to the context.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs SQL errors and queries slower than slow at WARN and above.
// A zero slow disables slow-query logging.
func NewGormLogger(l *slog.Logger, slow time.Duration) logger.Interface {
	return &gormLogger{log: l, level: logger.Warn, slow: slow}
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) logf(ctx context.Context, threshold logger.LogLevel, lvl slog.Level, msg string, data []any) {
	if g.level >= threshold {
		g.log.Log(ctx, lvl, fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	g.logf(ctx, logger.Info, slog.LevelInfo, msg, data)
}

func (g *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	g.logf(ctx, logger.Warn, slog.LevelWarn, msg, data)
}

func (g *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	g.logf(ctx, logger.Error, slog.LevelError, msg, data)
}

// Trace is called once per statement. Missing rows are normal lookups and
// are not treated as errors.
func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := g.slow > 0 && elapsed > g.slow

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case failed && g.level >= logger.Error:
		lvl, msg = slog.LevelError, "sql error"
	case slow && g.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "slow sql"
	case g.level >= logger.Info:
		lvl, msg = slog.LevelInfo, "sql"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, lvl, msg, attrs...)
}
