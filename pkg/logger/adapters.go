package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// ZerologAdapter adapts zerolog.Logger to Adapter.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new adapter for zerolog
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes one structured event. error values use zerolog's error field.
func (z *ZerologAdapter) Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	var evt *zerolog.Event
	switch level {
	case DebugLevel:
		evt = z.logger.Debug()
	case WarnLevel:
		evt = z.logger.Warn()
	case ErrorLevel:
		evt = z.logger.Error()
	default:
		evt = z.logger.Info()
	}

	for _, attr := range attrs {
		if err, ok := attr.Value.(error); ok {
			evt = evt.AnErr(attr.Key, err)
			continue
		}
		evt = evt.Interface(attr.Key, attr.Value)
	}
	evt.Ctx(ctx).Msg(msg)
}

// IsLevelEnabled checks the level against the zerolog logger and global level.
func (z *ZerologAdapter) IsLevelEnabled(_ context.Context, level LogLevel) bool {
	lvl := logLevelToZerolog(level)
	return lvl >= z.logger.GetLevel() && lvl >= zerolog.GlobalLevel()
}

func (z *ZerologAdapter) Printf(format string, v ...any) {
	z.logger.Printf(format, v...)
}

func logLevelToZerolog(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SlogAdapter adapts slog.Logger to Adapter.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new adapter for slog
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (s *SlogAdapter) Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	slogAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		slogAttrs[i] = slog.Any(attr.Key, attr.Value)
	}
	s.logger.LogAttrs(ctx, logLevelToSlog(level), msg, slogAttrs...)
}

func (s *SlogAdapter) IsLevelEnabled(ctx context.Context, level LogLevel) bool {
	return s.logger.Enabled(ctx, logLevelToSlog(level))
}

func (s *SlogAdapter) Printf(format string, v ...any) {
	s.logger.Info(fmt.Sprintf(format, v...))
}

func logLevelToSlog(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StandardAdapter adapts the standard library log package. It has no level
// filtering; entries are printed as "LEVEL msg key=value ...".
type StandardAdapter struct {
	logger *log.Logger
}

// NewStandardAdapter creates a new adapter for the standard log package
func NewStandardAdapter(logger *log.Logger) *StandardAdapter {
	return &StandardAdapter{logger: logger}
}

func (s *StandardAdapter) Log(_ context.Context, level LogLevel, msg string, attrs ...Attribute) {
	var b strings.Builder
	b.WriteString(levelName(level))
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, attr := range attrs {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
	}
	s.logger.Print(b.String())
}

func (s *StandardAdapter) IsLevelEnabled(context.Context, LogLevel) bool {
	return true
}

func (s *StandardAdapter) Printf(format string, v ...any) {
	s.logger.Printf(format, v...)
}

func levelName(level LogLevel) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}
