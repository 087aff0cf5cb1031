package events

import "time"

// EventType represents different types of events in the system
type EventType string

const (
	// Recording events
	EventTypeRecordingStarted EventType = "recording.started"
	EventTypeRecordingStopped EventType = "recording.stopped"

	// Replay session events
	EventTypeSessionStarted EventType = "session.started"
	EventTypeSessionPaused  EventType = "session.paused"
	EventTypeSessionEnded   EventType = "session.ended"
	EventTypeActionReplayed EventType = "session.action"

	// Monitor events
	EventTypeStateChanged EventType = "state.changed"

	// Scheduler events
	EventTypeScheduleFired   EventType = "schedule.fired"
	EventTypeScheduleSkipped EventType = "schedule.skipped"

	// Error events
	EventTypeError EventType = "error"
)

// AllEventTypes lists every type, for subscribers that want everything
var AllEventTypes = []EventType{
	EventTypeRecordingStarted,
	EventTypeRecordingStopped,
	EventTypeSessionStarted,
	EventTypeSessionPaused,
	EventTypeSessionEnded,
	EventTypeActionReplayed,
	EventTypeStateChanged,
	EventTypeScheduleFired,
	EventTypeScheduleSkipped,
	EventTypeError,
}

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "coordinator", "monitor")
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	Publish(event Event)
	Stop()
}

// Publisher is the publish half of EventBus
type Publisher interface {
	Publish(event Event)
}

// NewRecordingEvent creates a recording started/stopped event
func NewRecordingEvent(eventType EventType, actions int) Event {
	return Event{
		Type:      eventType,
		Source:    "coordinator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"actions": actions,
		},
	}
}

// NewSessionStartedEvent creates a session started event
func NewSessionStartedEvent(sessionID, macroName string, actions int, monitored bool) Event {
	return Event{
		Type:      EventTypeSessionStarted,
		Source:    "coordinator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"macro":      macroName,
			"actions":    actions,
			"monitored":  monitored,
		},
	}
}

// NewSessionPausedEvent creates a session paused event
func NewSessionPausedEvent(sessionID, state string) Event {
	return Event{
		Type:      EventTypeSessionPaused,
		Source:    "coordinator",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"state":      state,
		},
	}
}

// NewSessionEndedEvent creates a session ended event
func NewSessionEndedEvent(sessionID, outcome string, dispatched int, duration time.Duration, err error) Event {
	data := map[string]interface{}{
		"session_id":  sessionID,
		"outcome":     outcome,
		"dispatched":  dispatched,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return Event{
		Type:      EventTypeSessionEnded,
		Source:    "coordinator",
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewActionReplayedEvent creates an event for one dispatched action
func NewActionReplayedEvent(sessionID string, index int, x, y float64) Event {
	return Event{
		Type:      EventTypeActionReplayed,
		Source:    "replay",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"session_id": sessionID,
			"index":      index,
			"x":          x,
			"y":          y,
		},
	}
}

// NewStateChangedEvent creates a game state change event
func NewStateChangedEvent(from, to string) Event {
	return Event{
		Type:      EventTypeStateChanged,
		Source:    "monitor",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}
}

// NewScheduleEvent creates a schedule fired/skipped event
func NewScheduleEvent(eventType EventType, entry, macroName, reason string) Event {
	return Event{
		Type:      eventType,
		Source:    "scheduler",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"entry":  entry,
			"macro":  macroName,
			"reason": reason,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, message string, err error) Event {
	data := map[string]interface{}{
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
