// Package logger provides leveled structured logging behind a small backend
// interface so the service can run on zerolog, slog or the standard library.
package logger

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel represents logging levels (Debug < Info < Warn < Error)
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a level name to a LogLevel. Unknown names map to InfoLevel.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error", "fatal":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Attribute is a structured key/value pair attached to a log entry.
type Attribute struct {
	Key   string
	Value any
}

// Attr creates an Attribute
func Attr(key string, value any) Attribute {
	return Attribute{Key: key, Value: value}
}

// Err is shorthand for Attr("error", err).
func Err(err error) Attribute {
	return Attribute{Key: "error", Value: err}
}

// Adapter defines the contract for logging backends (zerolog, slog, standard log).
type Adapter interface {
	Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute)
	IsLevelEnabled(ctx context.Context, level LogLevel) bool
	Printf(format string, v ...any)
}

// Logger wraps an Adapter and carries attributes bound with With.
type Logger struct {
	backend Adapter
	fields  []Attribute
}

// New creates a Logger with a custom backend.
func New(backend Adapter) *Logger {
	return &Logger{backend: backend}
}

// Default creates a Logger on the standard library log package.
func Default() *Logger {
	return New(NewStandardAdapter(log.Default()))
}

// NewZerolog builds the production logger: JSON lines on w, or a human
// readable console format when pretty is set.
func NewZerolog(w io.Writer, level LogLevel, pretty bool) *Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).Level(logLevelToZerolog(level)).With().Timestamp().Logger()
	return New(NewZerologAdapter(zl))
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(NewZerologAdapter(zerolog.Nop()))
}

// With returns a child Logger that adds attrs to every entry.
func (l *Logger) With(attrs ...Attribute) *Logger {
	fields := make([]Attribute, 0, len(l.fields)+len(attrs))
	fields = append(fields, l.fields...)
	fields = append(fields, attrs...)
	return &Logger{backend: l.backend, fields: fields}
}

func (l *Logger) Debug(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, DebugLevel, msg, attrs)
}

func (l *Logger) Info(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, InfoLevel, msg, attrs)
}

func (l *Logger) Warn(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, WarnLevel, msg, attrs)
}

func (l *Logger) Error(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, ErrorLevel, msg, attrs)
}

// Printf provides level-agnostic logging.
func (l *Logger) Printf(format string, v ...any) {
	l.backend.Printf(format, v...)
}

func (l *Logger) log(ctx context.Context, level LogLevel, msg string, attrs []Attribute) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.backend.IsLevelEnabled(ctx, level) {
		return
	}
	if len(l.fields) > 0 {
		attrs = append(append(make([]Attribute, 0, len(l.fields)+len(attrs)), l.fields...), attrs...)
	}
	l.backend.Log(ctx, level, msg, attrs...)
}
