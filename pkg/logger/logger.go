// Package logger provides the structured slog-backed logging used across the
// agent, its engine and the HTTP surface.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Level represents logging levels.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levels = [...]struct {
	name string
	slog slog.Level
}{
	DebugLevel: {"debug", slog.LevelDebug},
	InfoLevel:  {"info", slog.LevelInfo},
	WarnLevel:  {"warn", slog.LevelWarn},
	ErrorLevel: {"error", slog.LevelError},
}

func (l Level) valid() bool { return l >= DebugLevel && l <= ErrorLevel }

// String returns the lowercase level name.
func (l Level) String() string {
	if !l.valid() {
		return "unknown"
	}
	return levels[l].name
}

func (l Level) slogLevel() slog.Level {
	if !l.valid() {
		return slog.LevelInfo
	}
	return levels[l].slog
}

// ParseLevel parses a level name, case-insensitively. Unknown names map to
// InfoLevel.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return WarnLevel
	}
	for l := DebugLevel; l <= ErrorLevel; l++ {
		if levels[l].name == s {
			return l
		}
	}
	return InfoLevel
}

// Config holds logger configuration.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output string // "stdout", "stderr", or file path
	// Writer overrides Output when set.
	Writer io.Writer
	// AddSource records the caller's file and line.
	AddSource bool
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	// Named tags every record with a component name.
	Named(component string) Logger
	WithContext(ctx context.Context) context.Context

	SetLevel(level Level)
	GetLevel() Level

	// Close releases the log file, if the logger opened one.
	Close() error
}

// ComponentKey is the attribute Named attaches.
const ComponentKey = "component"

// SlogLogger is a Logger implementation using log/slog.
type SlogLogger struct {
	handler slog.Handler
	level   *slog.LevelVar
	closer  io.Closer
}

// New creates a Logger. A nil config yields JSON at info level on stdout.
// When the output file cannot be opened the logger writes to stderr instead
// and says so on stderr.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Output: "stdout"}
	}

	level := &slog.LevelVar{}
	level.Set(cfg.Level.slogLevel())

	writer, closer := cfg.Writer, io.Closer(nil)
	if writer == nil {
		var err error
		writer, closer, err = openOutput(cfg.Output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v; writing to stderr\n", err)
			writer, closer = os.Stderr, nil
		}
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr,
	}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}
	return &SlogLogger{handler: handler, level: level, closer: closer}
}

// openOutput resolves stdout, stderr or a file path. Only files need closing.
func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

// replaceAttr renames the message key and lowercases levels.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.MessageKey:
		return slog.Attr{Key: "message", Value: a.Value}
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String("level", strings.ToLower(lvl.String()))
		}
	}
	return a
}

// log builds the record itself so that the source attribute points at the
// caller of the exported method rather than at this package.
func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	_ = l.handler.Handle(ctx, r)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args)
}

// DebugContext logs at debug level, adding trace_id and span_id when ctx
// carries a valid span. The other *Context methods do the same.
func (l *SlogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *SlogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *SlogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

// With returns a Logger that adds args to every record. The derived logger
// shares the level and never closes the parent's file.
func (l *SlogLogger) With(args ...any) Logger {
	if len(args) == 0 {
		return l
	}
	h := slog.New(l.handler).With(args...).Handler()
	return &SlogLogger{handler: h, level: l.level}
}

// Named returns a Logger tagged with component.
func (l *SlogLogger) Named(component string) Logger {
	return l.With(ComponentKey, component)
}

// WithContext returns a context with the logger attached.
func (l *SlogLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, Logger(l))
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *SlogLogger) SetLevel(level Level) {
	l.level.Set(level.slogLevel())
}

// GetLevel returns the current logging level.
func (l *SlogLogger) GetLevel() Level {
	lvl := l.level.Level()
	for i := DebugLevel; i < ErrorLevel; i++ {
		if lvl <= levels[i].slog {
			return i
		}
	}
	return ErrorLevel
}

// Close closes the log file, if any.
func (l *SlogLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Nop returns a Logger that discards every record.
func Nop() Logger {
	level := &slog.LevelVar{}
	level.Set(slog.LevelError + 4)
	return &SlogLogger{handler: slog.DiscardHandler, level: level}
}

type loggerKey struct{}

// FromContext extracts a Logger from context, falling back to Global.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

type holder struct{ Logger }

var global atomic.Pointer[holder]

func init() {
	SetGlobal(New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"}))
}

// Global returns the process-wide logger.
func Global() Logger {
	return global.Load().Logger
}

// SetGlobal replaces the process-wide logger. A nil logger is ignored.
func SetGlobal(l Logger) {
	if l != nil {
		global.Store(&holder{l})
	}
}

// SetLevel sets the level of the global logger.
func SetLevel(level Level) {
	Global().SetLevel(level)
}

// Convenience functions for the global logger.

func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }

func DebugContext(ctx context.Context, msg string, args ...any) {
	Global().DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Global().InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Global().WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Global().ErrorContext(ctx, msg, args...)
}
