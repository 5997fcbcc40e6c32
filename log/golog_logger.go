package log

import (
	"strings"

	"github.com/kataras/golog"
)

var gologLevels = map[LogLevel]string{
	LogLevelDebug: "debug",
	LogLevelInfo:  "info",
	LogLevelWarn:  "warn",
	LogLevelError: "error",
	LogLevelNone:  "disable",
}

// GologLogger implements Logger on top of a golog.Logger. Loggers derived
// with WithPrefix share the golog instance and its level.
type GologLogger struct {
	logger *golog.Logger
	level  *LogLevel
	prefix string
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger. The level starts at info.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	level := LogLevelInfo
	return &GologLogger{logger: logger, level: &level}
}

func (l *GologLogger) enabled(level LogLevel) bool {
	return *l.level != LogLevelNone && *l.level <= level
}

func (l *GologLogger) Debug(format string, v ...any) {
	if l.enabled(LogLevelDebug) {
		l.logger.Debugf(l.prefix+format, v...)
	}
}

func (l *GologLogger) Info(format string, v ...any) {
	if l.enabled(LogLevelInfo) {
		l.logger.Infof(l.prefix+format, v...)
	}
}

func (l *GologLogger) Warn(format string, v ...any) {
	if l.enabled(LogLevelWarn) {
		l.logger.Warnf(l.prefix+format, v...)
	}
}

func (l *GologLogger) Error(format string, v ...any) {
	if l.enabled(LogLevelError) {
		l.logger.Errorf(l.prefix+format, v...)
	}
}

// WithPrefix returns a logger that starts every message with prefix.
func (l *GologLogger) WithPrefix(prefix string) Logger {
	return &GologLogger{logger: l.logger, level: l.level, prefix: l.prefix + escape(prefix)}
}

// SetLevel sets the level on both the wrapper and the golog instance.
func (l *GologLogger) SetLevel(level LogLevel) {
	*l.level = level
	name, ok := gologLevels[level]
	if !ok {
		name = "info"
	}
	l.logger.SetLevel(name)
}

// GetLevel returns the current log level
func (l *GologLogger) GetLevel() LogLevel {
	return *l.level
}

type prefixed struct {
	Logger
	prefix string
}

func (p prefixed) Debug(format string, v ...any) { p.Logger.Debug(p.prefix+format, v...) }
func (p prefixed) Info(format string, v ...any)  { p.Logger.Info(p.prefix+format, v...) }
func (p prefixed) Warn(format string, v ...any)  { p.Logger.Warn(p.prefix+format, v...) }
func (p prefixed) Error(format string, v ...any) { p.Logger.Error(p.prefix+format, v...) }

// WithPrefix scopes l so every message starts with prefix. Loggers that know
// how to scope themselves are asked to; others are wrapped.
func WithPrefix(l Logger, prefix string) Logger {
	switch x := l.(type) {
	case nil:
		return &NoOpLogger{}
	case *NoOpLogger:
		return x
	case interface{ WithPrefix(string) Logger }:
		return x.WithPrefix(prefix)
	}
	return prefixed{Logger: l, prefix: escape(prefix)}
}

// escape keeps verbs in a prefix from being read as format directives.
func escape(prefix string) string {
	return strings.ReplaceAll(prefix, "%", "%%")
}
