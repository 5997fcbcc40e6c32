// Package log is the leveled logging facade used across nodeflow. The
// default backend is kataras/golog.
package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/kataras/golog"
)

// LogLevel represents logging severity
type LogLevel int

const (
	// LogLevelDebug for scheduling decisions and per-node details
	LogLevelDebug LogLevel = iota
	// LogLevelInfo for run lifecycle messages
	LogLevelInfo
	// LogLevelWarn for node failures that the run survives
	LogLevelWarn
	// LogLevelError for failures of a whole run or of infrastructure
	LogLevelError
	// LogLevelNone disables all logging
	LogLevelNone
)

// Logger is the logging interface accepted by the processor, the stores and
// the transports.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(format string, v ...any) {}
func (l *NoOpLogger) Info(format string, v ...any)  {}
func (l *NoOpLogger) Warn(format string, v ...any)  {}
func (l *NoOpLogger) Error(format string, v ...any) {}

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}

// ParseLevel turns a level name such as "debug" or "WARN" into a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none", "off", "disable":
		return LogLevelNone, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New creates a golog backed logger writing to stderr at the given level.
func New(level LogLevel) *GologLogger {
	g := golog.New()
	g.SetOutput(os.Stderr)
	g.SetPrefix("[nodeflow] ")
	l := NewGologLogger(g)
	l.SetLevel(level)
	return l
}

var defaultLogger Logger = New(LogLevelInfo)

// SetDefaultLogger sets the package-level logger
func SetDefaultLogger(logger Logger) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	defaultLogger = logger
}

// GetDefaultLogger returns the current package-level logger
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetLogLevel replaces the package-level logger with a golog logger at level.
func SetLogLevel(level LogLevel) {
	defaultLogger = New(level)
}

func Debug(format string, v ...any) { defaultLogger.Debug(format, v...) }
func Info(format string, v ...any)  { defaultLogger.Info(format, v...) }
func Warn(format string, v ...any)  { defaultLogger.Warn(format, v...) }
func Error(format string, v ...any) { defaultLogger.Error(format, v...) }
