// Package logger provides a structured logger over zerolog, keeping the
// key/value call shape the rest of this codebase already uses
// (msg string, keysAndValues ...interface{}) instead of zerolog's
// chained event builder.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger behind the repo's key/value logging
// surface.
type Logger struct {
	zl      zerolog.Logger
	enabled bool
}

// New creates a Logger writing JSON lines to stdout at info level.
func New() *Logger {
	zl := zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Str("service", "eve-o-provit").Logger()
	return &Logger{zl: zl, enabled: true}
}

// NewNoop creates a logger that discards everything, for tests.
func NewNoop() *Logger {
	return &Logger{zl: zerolog.Nop(), enabled: false}
}

// Debug logs debug-level messages with key-value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.DebugLevel, msg, keysAndValues...)
}

// Info logs info-level messages with key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.InfoLevel, msg, keysAndValues...)
}

// Warn logs warning-level messages with key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.WarnLevel, msg, keysAndValues...)
}

// Error logs error-level messages with key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.ErrorLevel, msg, keysAndValues...)
}

func (l *Logger) log(level zerolog.Level, msg string, keysAndValues ...interface{}) {
	if !l.enabled {
		return
	}
	evt := l.zl.WithLevel(level)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		evt = addField(evt, key, keysAndValues[i+1])
	}
	evt.Msg(msg)
}

func addField(evt *zerolog.Event, key string, v interface{}) *zerolog.Event {
	if err, ok := v.(error); ok {
		return evt.AnErr(key, err)
	}
	return evt.Interface(key, v)
}
