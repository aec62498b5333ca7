// Package logger provides a leveled logger that can write to multiple outputs.
// Init must be called early in the application lifecycle before using other logger functions.
// Functions like AddOutput and SetLevel will return errors if called before Init.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is the minimum severity a message needs to be written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts a level name (case-insensitive) into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger writes formatted lines to every registered output.
type Logger struct {
	mu         sync.Mutex
	outputs    []io.Writer
	prefix     string
	level      Level
	timestamps bool
}

var (
	globalLogger *Logger
	once         sync.Once
	globalBuffer *LogBuffer
	bufferOnce   sync.Once
)

var errNotInitialized = errors.New("logger not initialized: call logger.Init() first")

// GetGlobalLogBuffer returns the global log buffer
func GetGlobalLogBuffer() *LogBuffer {
	bufferOnce.Do(func() {
		globalBuffer = NewLogBuffer(1000)
	})
	return globalBuffer
}

// Init initializes the global logger
func Init(prefix string, writeToStdout bool) {
	once.Do(func() {
		outputs := []io.Writer{}
		if writeToStdout {
			outputs = append(outputs, os.Stdout)
		}
		globalLogger = &Logger{
			outputs:    outputs,
			prefix:     prefix,
			level:      LevelDebug,
			timestamps: writeToStdout,
		}
	})
}

// AddOutput adds an additional output writer (e.g., for TUI log buffer).
func AddOutput(w io.Writer) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.outputs = append(globalLogger.outputs, w)
	return nil
}

// RemoveOutput removes an output writer.
func RemoveOutput(w io.Writer) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	kept := globalLogger.outputs[:0]
	for _, output := range globalLogger.outputs {
		if output != w {
			kept = append(kept, output)
		}
	}
	globalLogger.outputs = kept
	return nil
}

// SetLevel drops every message below level.
func SetLevel(level Level) error {
	if globalLogger == nil {
		return errNotInitialized
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.level = level
	return nil
}

func logAt(level Level, format string, v ...interface{}) {
	if globalLogger == nil {
		log.Printf("["+level.String()+"] "+format, v...)
		return
	}

	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	if level < globalLogger.level || len(globalLogger.outputs) == 0 {
		return
	}

	msg := strings.TrimSuffix(fmt.Sprintf(format, v...), "\n")
	if globalLogger.prefix != "" {
		msg = fmt.Sprintf("[%s] %s", globalLogger.prefix, msg)
	}
	line := fmt.Sprintf("%-5s %s\n", level.String(), msg)
	if globalLogger.timestamps {
		line = time.Now().Format("15:04:05.000") + " " + line
	}

	for _, output := range globalLogger.outputs {
		_, _ = io.WriteString(output, line)
	}
}

// Printf logs a formatted message at info level
func Printf(format string, v ...interface{}) {
	logAt(LevelInfo, format, v...)
}

// Debugf logs a debug-level formatted message
func Debugf(format string, v ...interface{}) {
	logAt(LevelDebug, format, v...)
}

// Infof logs an info-level formatted message
func Infof(format string, v ...interface{}) {
	logAt(LevelInfo, format, v...)
}

// Info logs an info-level message
func Info(v ...interface{}) {
	logAt(LevelInfo, "%s", fmt.Sprint(v...))
}

// Warnf logs a warning-level formatted message
func Warnf(format string, v ...interface{}) {
	logAt(LevelWarn, format, v...)
}

// Errorf logs an error-level formatted message
func Errorf(format string, v ...interface{}) {
	logAt(LevelError, format, v...)
}

// Error logs an error-level message
func Error(v ...interface{}) {
	logAt(LevelError, "%s", fmt.Sprint(v...))
}

// Logf logs a formatted message at the given level
func Logf(level Level, format string, v ...interface{}) {
	logAt(level, format, v...)
}

// WithNode returns a logFn that tags every line with "[nodeID]", the format
// LogBufferWriter uses to attribute entries.
func WithNode(nodeID string, level Level) func(format string, args ...interface{}) {
	return func(format string, args ...interface{}) {
		logAt(level, "[%s] %s", nodeID, fmt.Sprintf(format, args...))
	}
}
