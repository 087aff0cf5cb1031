package logging

import (
	"sync"
	"time"
)

// ErrorCategory groups reported errors by subsystem
type ErrorCategory string

const (
	ErrorCategoryCapture    ErrorCategory = "capture"
	ErrorCategoryClassifier ErrorCategory = "classifier"
	ErrorCategoryReplay     ErrorCategory = "replay"
	ErrorCategoryInput      ErrorCategory = "input"
	ErrorCategoryStorage    ErrorCategory = "storage"
	ErrorCategoryScheduler  ErrorCategory = "scheduler"
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity string

const (
	ErrorSeverityLow    ErrorSeverity = "low"
	ErrorSeverityMedium ErrorSeverity = "medium"
	ErrorSeverityHigh   ErrorSeverity = "high"
)

// ErrorReport is one recorded failure
type ErrorReport struct {
	Timestamp time.Time              `json:"timestamp"`
	Category  ErrorCategory          `json:"category"`
	Severity  ErrorSeverity          `json:"severity"`
	Component string                 `json:"component"`
	Message   string                 `json:"message"`
	Error     error                  `json:"error"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// ErrorCallback is called when an error is reported
type ErrorCallback func(report *ErrorReport)

// ErrorReporter keeps a bounded history of errors that were handled rather
// than returned, such as capture failures skipped by the monitor.
type ErrorReporter struct {
	logger     *Logger
	maxHistory int

	mu        sync.RWMutex
	history   []*ErrorReport
	callbacks []ErrorCallback
}

// NewErrorReporter creates a reporter holding up to maxHistory reports
func NewErrorReporter(maxHistory int) *ErrorReporter {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	return &ErrorReporter{
		logger:     NewLogger("ErrorReporter"),
		maxHistory: maxHistory,
	}
}

// Report records and logs an error
func (er *ErrorReporter) Report(category ErrorCategory, severity ErrorSeverity, component, message string, err error, context map[string]interface{}) {
	report := &ErrorReport{
		Timestamp: time.Now(),
		Category:  category,
		Severity:  severity,
		Component: component,
		Message:   message,
		Error:     err,
		Context:   context,
	}

	fields := map[string]interface{}{
		"category": string(category),
		"source":   component,
	}
	for k, v := range context {
		fields[k] = v
	}

	switch severity {
	case ErrorSeverityHigh:
		er.logger.ErrorWithContext(message, err, fields)
	case ErrorSeverityMedium:
		fields["error"] = err
		er.logger.WarnWithContext(message, fields)
	default:
		fields["error"] = err
		er.logger.DebugWithContext(message, fields)
	}

	er.mu.Lock()
	er.history = append(er.history, report)
	if len(er.history) > er.maxHistory {
		er.history = er.history[len(er.history)-er.maxHistory:]
	}
	callbacks := er.callbacks
	er.mu.Unlock()

	for _, cb := range callbacks {
		cb(report)
	}
}

// OnError registers a callback invoked synchronously for every report
func (er *ErrorReporter) OnError(cb ErrorCallback) {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.callbacks = append(er.callbacks, cb)
}

// GetRecentErrors returns the N most recent errors, oldest first
func (er *ErrorReporter) GetRecentErrors(n int) []*ErrorReport {
	er.mu.RLock()
	defer er.mu.RUnlock()

	if n > len(er.history) {
		n = len(er.history)
	}
	result := make([]*ErrorReport, n)
	copy(result, er.history[len(er.history)-n:])
	return result
}

// GetErrorStats counts reports per category
func (er *ErrorReporter) GetErrorStats() map[ErrorCategory]int {
	er.mu.RLock()
	defer er.mu.RUnlock()

	stats := make(map[ErrorCategory]int)
	for _, r := range er.history {
		stats[r.Category]++
	}
	return stats
}

// Clear clears the error history
func (er *ErrorReporter) Clear() {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.history = nil
}
