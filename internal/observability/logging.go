package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// LogContext holds structured logging context carried through a query's worker.
type LogContext struct {
	QueryID  string
	RootFile string
	Job      string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithQueryID adds a query ID to the context.
func WithQueryID(ctx context.Context, queryID string) context.Context {
	lc := extractLogContext(ctx)
	lc.QueryID = queryID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithRootFile adds the root document path to the context.
func WithRootFile(ctx context.Context, rootFile string) context.Context {
	lc := extractLogContext(ctx)
	lc.RootFile = rootFile
	return context.WithValue(ctx, logContextKey, lc)
}

// WithJob adds the currently executing job to the context.
func WithJob(ctx context.Context, job string) context.Context {
	lc := extractLogContext(ctx)
	lc.Job = job
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := make([]slog.Attr, 0, 3)
	if lc.QueryID != "" {
		attrs = append(attrs, logfields.QueryID(lc.QueryID))
	}
	if lc.RootFile != "" {
		attrs = append(attrs, logfields.File(lc.RootFile))
	}
	if lc.Job != "" {
		attrs = append(attrs, logfields.Job(lc.Job))
	}
	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelInfo, msg, append(getLogAttrs(ctx), attrs...)...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelWarn, msg, append(getLogAttrs(ctx), attrs...)...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelError, msg, append(getLogAttrs(ctx), attrs...)...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.LogAttrs(ctx, slog.LevelDebug, msg, append(getLogAttrs(ctx), attrs...)...)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}
