// Package logging provides the structured logger shared by the transport and
// its middleware, with optional OTLP export through the otelslog bridge.
package logging

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/sdk/log"
)

type loggerContextKey struct{}
type requestIDContextKey struct{}

// Logger wraps slog.Logger with convenience methods.
type Logger struct {
	*slog.Logger
}

// Config holds logging configuration.
type Config struct {
	Level          string              // debug, info, warn, error
	Format         string              // json, text
	LoggerProvider *log.LoggerProvider // optional OTLP logger provider for exporting logs
}

func parseLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func stdoutHandler(format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

// NewLogger creates a structured logger. When an OTLP logger provider is
// configured, records go to both stdout and the OTLP exporter.
func NewLogger(cfg Config) *Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations only when the floor is error level.
		AddSource: level <= slog.LevelError,
	}

	handler := stdoutHandler(cfg.Format, opts)
	if cfg.LoggerProvider != nil {
		otlpHandler := otelslog.NewHandler("gqlhttp", otelslog.WithLoggerProvider(cfg.LoggerProvider))
		handler = newMultiHandler(handler, otlpHandler)
	}

	return &Logger{Logger: slog.New(handler)}
}

// multiHandler fans each record out to every wrapped handler.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// WithRequestID returns a new logger with the request ID field attached.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With(slog.String("request_id", requestID))}
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{Logger: l.With(fields...)}
}

// FromContext retrieves the request-scoped logger, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default()}
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestIDContext adds a request ID to the context.
func WithRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}
