package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jordanella.com/slash-go/internal/events"
)

// EventLogger subscribes to the event bus and writes every event to a
// timestamped JSON-lines file as well as the process log.
type EventLogger struct {
	logger   *Logger
	eventBus events.EventBus
	subs     []events.SubscriptionID
	logFile  *os.File
}

// NewEventLogger creates logDir if needed and starts logging events
func NewEventLogger(eventBus events.EventBus, logDir string) (*EventLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	el := &EventLogger{
		logger:   NewLogger("EventLogger").WithOutput(logFile),
		eventBus: eventBus,
		logFile:  logFile,
	}

	for _, eventType := range events.AllEventTypes {
		el.subs = append(el.subs, eventBus.Subscribe(eventType, el.handleEvent))
	}

	return el, nil
}

// Path returns the event log file path
func (el *EventLogger) Path() string {
	return el.logFile.Name()
}

func (el *EventLogger) handleEvent(event events.Event) {
	context := map[string]interface{}{
		"event_type": string(event.Type),
		"source":     event.Source,
	}
	for k, v := range event.Data {
		context[k] = v
	}

	if event.Type == events.EventTypeError {
		el.logger.WarnWithContext("event", context)
		return
	}
	el.logger.DebugWithContext("event", context)
}

// Close unsubscribes and closes the log file
func (el *EventLogger) Close() error {
	for _, id := range el.subs {
		el.eventBus.Unsubscribe(id)
	}
	el.subs = nil
	return el.logFile.Close()
}
