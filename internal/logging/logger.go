package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	root   = newRoot()
	rootMu sync.Mutex
)

// newRoot configures logrus' standard logger so packages below logging in the
// import graph (events) can log through logrus directly and share settings.
func newRoot() *logrus.Logger {
	l := logrus.StandardLogger()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init configures the process-wide log backend. LOG_LEVEL and LOG_FORMAT
// override the given level and format when set.
func Init(level, format string) {
	rootMu.Lock()
	defer rootMu.Unlock()

	if env, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = env
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	root.SetLevel(parsed)

	if env, ok := os.LookupEnv("LOG_FORMAT"); ok {
		format = env
	}
	if strings.ToLower(format) == "json" {
		root.SetFormatter(&logrus.JSONFormatter{})
	} else {
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects the process-wide log output
func SetOutput(w io.Writer) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root.SetOutput(w)
}

// Logger is a component-scoped logger
type Logger struct {
	component string
	entry     *logrus.Entry
}

// NewLogger creates a new logger for a specific component
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		entry:     root.WithField("component", component),
	}
}

// WithOutput returns a logger that also writes JSON lines to w, at debug level
func (l *Logger) WithOutput(w io.Writer) *Logger {
	rootMu.Lock()
	out := root.Out
	rootMu.Unlock()

	tee := logrus.New()
	tee.SetOutput(io.MultiWriter(out, w))
	tee.SetLevel(logrus.DebugLevel)
	tee.SetFormatter(&logrus.JSONFormatter{})

	return &Logger{
		component: l.component,
		entry:     tee.WithField("component", l.component),
	}
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(message string, context map[string]interface{}) {
	l.entry.WithFields(context).Debug(message)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(message string, context map[string]interface{}) {
	l.entry.WithFields(context).Info(message)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(message string, context map[string]interface{}) {
	l.entry.WithFields(context).Warn(message)
}

// Error logs an error message
func (l *Logger) Error(message string, err error) {
	l.entry.WithError(err).Error(message)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(message string, err error, context map[string]interface{}) {
	l.entry.WithFields(context).WithError(err).Error(message)
}

// WithContext returns a logger with pre-set context
func (l *Logger) WithContext(context map[string]interface{}) *ContextLogger {
	return &ContextLogger{entry: l.entry.WithFields(context)}
}

// ContextLogger is a logger with pre-set context
type ContextLogger struct {
	entry *logrus.Entry
}

// Debug logs a debug message with pre-set context
func (cl *ContextLogger) Debug(message string) {
	cl.entry.Debug(message)
}

// Info logs an info message with pre-set context
func (cl *ContextLogger) Info(message string) {
	cl.entry.Info(message)
}

// Warn logs a warning message with pre-set context
func (cl *ContextLogger) Warn(message string) {
	cl.entry.Warn(message)
}

// Error logs an error message with pre-set context
func (cl *ContextLogger) Error(message string, err error) {
	cl.entry.WithError(err).Error(message)
}
