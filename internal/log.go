package internal

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// Logger provides leveled logging for one component
// Loggers derived with With share the level of their parent.
type Logger struct {
	level     *atomic.Int32
	component string
}

// NewLogger creates a new logger with the specified level
func NewLogger(level LogLevel) *Logger {
	l := &Logger{level: new(atomic.Int32)}
	l.level.Store(int32(level))
	return l
}

// ParseLogLevel maps ERROR/WARN/INFO/DEBUG/TRACE (any case) to a level.
// Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN", "WARNING":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

// NewDefaultLogger creates a logger based on LOG_LEVEL environment variable
func NewDefaultLogger() *Logger {
	return NewLogger(ParseLogLevel(os.Getenv("LOG_LEVEL")))
}

// With returns a logger that tags every line with [component].
func (l *Logger) With(component string) *Logger {
	return &Logger{level: l.level, component: component}
}

func (l *Logger) printf(tag string, format string, args ...interface{}) {
	if l.component != "" {
		format = "[" + l.component + "] " + format
	}
	log.Printf(tag+format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	if l.GetLevel() >= LogLevelError {
		l.printf("[ERROR] ", format, args...)
	}
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.GetLevel() >= LogLevelWarn {
		l.printf("[WARN] ", format, args...)
	}
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	if l.GetLevel() >= LogLevelInfo {
		l.printf("[INFO] ", format, args...)
	}
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.GetLevel() >= LogLevelDebug {
		l.printf("[DEBUG] ", format, args...)
	}
}

// Trace logs trace messages
func (l *Logger) Trace(format string, args ...interface{}) {
	if l.GetLevel() >= LogLevelTrace {
		l.printf("[TRACE] ", format, args...)
	}
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return LogLevel(l.level.Load())
}

// SetLevel changes the verbosity, e.g. after configuration is loaded.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
