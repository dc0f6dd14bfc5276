// Package log carries a structured logger in context.Context.
package log

import (
	"context"
	"io"

	"golang.org/x/exp/slog"
)

type contextKey struct{}

// Levels and output formats accepted by NewContext.
const (
	LevelDebug = int(slog.LevelDebug)
	LevelInfo  = int(slog.LevelInfo)
	LevelWarn  = int(slog.LevelWarn)
	LevelErr   = int(slog.LevelError)

	OutputJSON = 1
	OutputText = 2
)

// NewContext returns a context carrying a logger writing to w.
func NewContext(ctx context.Context, level, format int, w io.Writer) context.Context {
	l := &slog.LevelVar{}
	l.Set(slog.Level(level))

	opts := &slog.HandlerOptions{Level: l}
	if format == OutputJSON {
		return newContext(ctx, slog.New(slog.NewJSONHandler(w, opts)))
	}
	return newContext(ctx, slog.New(slog.NewTextHandler(w, opts)))
}

// CopyFromContext returns dest carrying the logger of orig.
func CopyFromContext(orig, dest context.Context) context.Context {
	return newContext(dest, fromContext(orig))
}

// With returns a context whose logger adds args to every record.
func With(ctx context.Context, args ...any) context.Context {
	return newContext(ctx, fromContext(ctx).With(args...))
}

// Debug logs at debug level.
func Debug(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).DebugContext(ctx, msg, args...)
}

// Info logs at info level.
func Info(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).InfoContext(ctx, msg, args...)
}

// Warn logs at warn level.
func Warn(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).WarnContext(ctx, msg, args...)
}

// Error logs err at error level.
func Error(ctx context.Context, msg string, err error, args ...any) {
	fromContext(ctx).ErrorContext(ctx, msg, append([]any{"err", err}, args...)...)
}

// Leveled adapts the context logger to retryablehttp.LeveledLogger.
func Leveled(ctx context.Context) *LeveledLogger {
	return &LeveledLogger{l: fromContext(ctx)}
}

// LeveledLogger logs HTTP retries through slog.
type LeveledLogger struct {
	l *slog.Logger
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...any) { l.l.Error(msg, keysAndValues...) }
func (l *LeveledLogger) Info(msg string, keysAndValues ...any)  { l.l.Info(msg, keysAndValues...) }
func (l *LeveledLogger) Debug(msg string, keysAndValues ...any) { l.l.Debug(msg, keysAndValues...) }
func (l *LeveledLogger) Warn(msg string, keysAndValues ...any)  { l.l.Warn(msg, keysAndValues...) }

func newContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

func fromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
