package logger

import (
	"log"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// Component tags a log line with the subsystem that produced it.
type Component int

const (
	None Component = iota
	Executor
	Scheduler
	API
	Registry
	Settlement
)

var componentPrefixes = map[Component]string{
	None:       "",
	Executor:   "[EXEC]  ",
	Scheduler:  "[SCHED] ",
	API:        "[API]   ",
	Registry:   "[REG]   ",
	Settlement: "[PAY]   ",
}

var colors = map[Component]color.Attribute{
	None:       color.FgWhite,
	Executor:   color.FgHiBlue,
	Scheduler:  color.FgMagenta,
	API:        color.FgGreen,
	Registry:   color.FgYellow,
	Settlement: color.FgHiGreen,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWith(c Component, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWith(c Component, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWith(c Component, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWith(c Component, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) InfoWith(_ Component, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) ErrorWith(_ Component, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) DebugWith(_ Component, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) NoticeWith(_ Component, _ string, _ ...interface{}) {}

// ComponentLogger wraps a Logger so every line carries one component prefix.
type ComponentLogger struct {
	inner Logger
	c     Component
}

var _ Logger = (*ComponentLogger)(nil)

// WithComponent returns a logger scoped to the given component.
func WithComponent(l Logger, c Component) Logger {
	return &ComponentLogger{inner: l, c: c}
}

func (l *ComponentLogger) Info(format string, args ...interface{}) {
	l.inner.InfoWith(l.c, format, args...)
}

func (l *ComponentLogger) InfoWith(c Component, format string, args ...interface{}) {
	l.inner.InfoWith(c, format, args...)
}

func (l *ComponentLogger) Error(format string, args ...interface{}) {
	l.inner.ErrorWith(l.c, format, args...)
}

func (l *ComponentLogger) ErrorWith(c Component, format string, args ...interface{}) {
	l.inner.ErrorWith(c, format, args...)
}

func (l *ComponentLogger) Debug(format string, args ...interface{}) {
	l.inner.DebugWith(l.c, format, args...)
}

func (l *ComponentLogger) DebugWith(c Component, format string, args ...interface{}) {
	l.inner.DebugWith(c, format, args...)
}

func (l *ComponentLogger) Notice(format string, args ...interface{}) {
	l.inner.NoticeWith(l.c, format, args...)
}

func (l *ComponentLogger) NoticeWith(c Component, format string, args ...interface{}) {
	l.inner.NoticeWith(c, format, args...)
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, component prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, c Component, format string) string {
	prefix := componentPrefixes[c]
	if l.enableColoring {
		prefix = color.New(colors[c]).Sprint(prefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + prefix + format
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.print(InfoLevel, None, format, args...)
}

func (l *StdLogger) InfoWith(c Component, format string, args ...interface{}) {
	l.print(InfoLevel, c, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.print(ErrorLevel, None, format, args...)
}

func (l *StdLogger) ErrorWith(c Component, format string, args ...interface{}) {
	l.print(ErrorLevel, c, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.print(DebugLevel, None, format, args...)
}

func (l *StdLogger) DebugWith(c Component, format string, args ...interface{}) {
	l.print(DebugLevel, c, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.print(NoticeLevel, None, format, args...)
}

func (l *StdLogger) NoticeWith(c Component, format string, args ...interface{}) {
	l.print(NoticeLevel, c, format, args...)
}

func (l *StdLogger) print(level Level, c Component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		log.Printf(l.formatMessage(level, c, format), args...)
	}
}
