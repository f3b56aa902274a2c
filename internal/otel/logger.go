package otel

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with a component-scoped child-logger
// convention.
type Logger struct {
	zlog zerolog.Logger
}

// NewLogger builds a Logger at level (trace/debug/info/warn/error/
// fatal; unrecognized values fall back to info) writing to output in
// either "json" (default) or "console" format.
func NewLogger(level, format string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stderr
	}

	var writer io.Writer = output
	if format == "console" {
		writer = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(writer).With().Timestamp().Logger().Level(parseLevel(level))
	return &Logger{zlog: zlog}
}

// DefaultLogger is the quiet stderr, info-level logger a Builder,
// Provider, or Watcher falls back to when none is supplied.
func DefaultLogger() *Logger {
	return NewLogger("info", "json", os.Stderr)
}

// Component returns a child logger tagged with a "component" field.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
