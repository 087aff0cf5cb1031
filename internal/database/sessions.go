package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Session history operations

// StartSession records a session as running
func (db *DB) StartSession(id, macroName string, monitored bool, startedAt time.Time) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, macro_name, monitored, started_at, outcome)
			VALUES (?, ?, ?, ?, 'RUNNING')
		`, id, macroName, monitored, startedAt)

		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

// EndSession stores how a session ended. errMsg may be empty.
func (db *DB) EndSession(id, outcome string, dispatched int, endedAt time.Time, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}

	return db.ExecTx(func(tx *sql.Tx) error {
		var startedAt time.Time
		err := tx.QueryRow(`SELECT started_at FROM sessions WHERE id = ?`, id).Scan(&startedAt)
		if err != nil {
			return fmt.Errorf("failed to get session start time: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE sessions
			SET ended_at = ?,
				duration_ms = ?,
				outcome = ?,
				dispatched = ?,
				error_message = ?
			WHERE id = ?
		`, endedAt, endedAt.Sub(startedAt).Milliseconds(), outcome, dispatched, msg, id)

		return err
	})
}

const sessionColumns = `
	id, macro_name, monitored, started_at, ended_at, duration_ms,
	outcome, dispatched, error_message`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	err := row.Scan(
		&s.ID, &s.MacroName, &s.Monitored, &s.StartedAt, &s.EndedAt, &s.DurationMs,
		&s.Outcome, &s.Dispatched, &s.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id string) (*Session, error) {
	return scanSession(db.conn.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

// ListSessions returns the most recent sessions, optionally for one macro
func (db *DB) ListSessions(macroName string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []interface{}{}
	if macroName != "" {
		query += ` WHERE macro_name = ?`
		args = append(args, macroName)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// GetOutcomeStats returns session counts grouped by outcome
func (db *DB) GetOutcomeStats(startDate, endDate time.Time) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT outcome, COUNT(*) as count
		FROM sessions
		WHERE started_at BETWEEN ? AND ?
		GROUP BY outcome
	`, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[outcome] = count
	}

	return stats, rows.Err()
}

// DeleteOldSessions deletes sessions started before olderThan
func (db *DB) DeleteOldSessions(olderThan time.Time) (int64, error) {
	var deleted int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM sessions WHERE started_at < ?`, olderThan)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}
