// Package logging provides the levelled, prefixed logger used across memsys.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// LevelError only logs errors
	LevelError LogLevel = iota
	// LevelWarn logs warnings and errors
	LevelWarn
	// LevelInfo logs general information, warnings and errors
	LevelInfo
	// LevelDebug logs structural changes to the tree and all above
	LevelDebug
	// LevelTrace logs every lookup and handle operation and all above
	LevelTrace
)

var levelNames = map[LogLevel]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a level name (case-insensitive) into a LogLevel.
func ParseLevel(name string) (LogLevel, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for level, n := range levelNames {
		if n == upper {
			return level, true
		}
	}
	return LevelInfo, false
}

// sink is shared between a logger and every logger derived from it with
// WithPrefix, so level and output changes apply to the whole family.
type sink struct {
	mu     sync.RWMutex
	level  LogLevel
	logger *log.Logger
}

// Logger provides levelled logging with a component prefix
type Logger struct {
	prefix string
	sink   *sink
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger("MEMSYS", os.Stderr)

		if name := os.Getenv("LOG_LEVEL"); name != "" {
			if level, ok := ParseLevel(name); ok {
				defaultLogger.SetLevel(level)
			}
		}

		// FUSE_DEBUG keeps parity with bazil's own debug switch
		if os.Getenv("FUSE_DEBUG") != "" {
			defaultLogger.SetLevel(LevelDebug)
		}
	})
	return defaultLogger
}

// NewLogger creates a new logger writing to w. prefix tags every line of
// the shared sink; component tags come from WithPrefix.
func NewLogger(prefix string, w io.Writer) *Logger {
	return &Logger{
		sink: &sink{
			level:  LevelInfo,
			logger: log.New(w, prefix+": ", logFlags()),
		},
	}
}

func logFlags() int {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC
	if os.Getenv("LOG_LONGFILE") != "" {
		flags |= log.Llongfile
	} else {
		flags |= log.Lshortfile
	}
	return flags
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Level returns the current logging level
func (l *Logger) Level() LogLevel {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return l.sink.level
}

// SetOutput redirects every logger sharing this sink to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.logger.SetOutput(w)
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return level <= l.sink.level
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = fmt.Sprintf("[%s] %s: %s", levelNames[level], l.prefix, msg)
	} else {
		msg = fmt.Sprintf("[%s] %s", levelNames[level], msg)
	}

	l.sink.mu.RLock()
	out := l.sink.logger
	l.sink.mu.RUnlock()
	if err := out.Output(3, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log message: %v\n", err)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Trace logs a trace message
func (l *Logger) Trace(format string, args ...interface{}) {
	l.log(LevelTrace, format, args...)
}

// WithPrefix returns a logger tagged with a component prefix that shares
// level and output with l.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		sink:   l.sink,
	}
}
