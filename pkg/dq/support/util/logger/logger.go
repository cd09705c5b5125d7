// Package logger provides the level-filtered logger used across the data-quality runner.
// It wraps the standard `log` package and prefixes every line with its level.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is a type representing the logging level.
type LogLevel int32

const (
	// LevelDebug is used for query traces and per-assertion details.
	LevelDebug LogLevel = iota
	// LevelInfo is used for job and task progress.
	LevelInfo
	// LevelWarn is used for retried operations and degraded collaborators.
	LevelWarn
	// LevelError is used for failed operations.
	LevelError
	// LevelFatal is used right before the process terminates.
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the upper-case name of the level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// logLevel holds the current global level. Messages below it are dropped.
var logLevel atomic.Int32

func init() {
	logLevel.Store(int32(LevelInfo))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

// ParseLogLevel converts a level name (case-insensitive) into a LogLevel.
// "TRACE" is accepted as an alias of DEBUG and "SILENT" as an alias of FATAL.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL", "SILENT":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level '%s'", level)
	}
}

// SetLogLevel sets the global log level.
// An unknown value falls back to INFO and a warning is printed.
func SetLogLevel(level string) {
	parsed, err := ParseLogLevel(level)
	if err != nil {
		fmt.Printf("%v. Defaulting to INFO level.\n", err)
	}
	logLevel.Store(int32(parsed))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(logLevel.Load())
}

// IsDebugEnabled reports whether DEBUG messages are currently written.
func IsDebugEnabled() bool {
	return GetLogLevel() <= LevelDebug
}

// SetOutput redirects all log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func logf(level LogLevel, format string, v ...interface{}) {
	if GetLogLevel() <= level {
		log.Printf("["+level.String()+"] "+format, v...)
	}
}

// Debugf formats and outputs a DEBUG level log message.
func Debugf(format string, v ...interface{}) {
	logf(LevelDebug, format, v...)
}

// Infof formats and outputs an INFO level log message.
func Infof(format string, v ...interface{}) {
	logf(LevelInfo, format, v...)
}

// Warnf formats and outputs a WARN level log message.
func Warnf(format string, v ...interface{}) {
	logf(LevelWarn, format, v...)
}

// Errorf formats and outputs an ERROR level log message.
func Errorf(format string, v ...interface{}) {
	logf(LevelError, format, v...)
}

// Fatalf outputs a FATAL level log message and terminates the process with exit code 1.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
