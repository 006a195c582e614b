// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr.  A nil *Logger discards
// everything.  Loggers derived with [Logger.Named] share the parent's
// output, so SetOutput and SetTimestamps apply to the whole family.
type Logger struct {
	level LogLevel
	name  string
	sink  *sink
}

type sink struct {
	mu         sync.Mutex
	w          io.Writer
	timestamps bool
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		sink: &sink{
			w:          os.Stderr,
			timestamps: verbosity >= 3,
		},
	}
}

// Named returns a logger that tags every line with component, e.g.
// "[VRB] resolve: ...".  Nested names are joined with dots.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	name := component
	if l.name != "" {
		name = l.name + "." + component
	}
	return &Logger{level: l.level, name: name, sink: l.sink}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.sink.mu.Lock()
	l.sink.timestamps = on
	l.sink.mu.Unlock()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.w = w
	l.sink.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel {
	if l == nil {
		return LogQuiet
	}
	return l.level
}

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...any) {
	l.logAt(LogNormal, "INF", format, args)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...any) {
	l.logAt(LogNormal, "WRN", format, args)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...any) {
	l.logAt(LogVerbose, "VRB", format, args)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...any) {
	l.logAt(LogDebug, "DBG", format, args)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...any) {
	l.logAt(LogQuiet, "ERR", format, args)
}

func (l *Logger) logAt(min LogLevel, tag, format string, args []any) {
	if l == nil || l.level < min {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = l.name + ": " + msg
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.timestamps {
		fmt.Fprintf(l.sink.w, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), tag, msg)
	} else {
		fmt.Fprintf(l.sink.w, "[%s] %s\n", tag, msg)
	}
}
