package database

import (
	"time"
)

// MacroRecord is a saved macro without its decoded actions
type MacroRecord struct {
	Name        string    `db:"name"`
	ActionCount int       `db:"action_count"`
	DurationMs  int64     `db:"duration_ms"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Session is one replay run
type Session struct {
	ID           string     `db:"id"`
	MacroName    string     `db:"macro_name"`
	Monitored    bool       `db:"monitored"`
	StartedAt    time.Time  `db:"started_at"`
	EndedAt      *time.Time `db:"ended_at"`
	DurationMs   *int64     `db:"duration_ms"`
	Outcome      string     `db:"outcome"`
	Dispatched   int        `db:"dispatched"`
	ErrorMessage *string    `db:"error_message"`
}

// Running reports whether the session has not ended yet
func (s *Session) Running() bool {
	return s.EndedAt == nil
}

// ErrorLog is a handled error, such as a skipped capture
type ErrorLog struct {
	ID         int64     `db:"id"`
	SessionID  *string   `db:"session_id"`
	Category   string    `db:"category"`
	Severity   string    `db:"severity"`
	Component  string    `db:"component"`
	Message    string    `db:"message"`
	OccurredAt time.Time `db:"occurred_at"`
}
