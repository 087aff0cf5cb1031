package database

import (
	"database/sql"
	"fmt"
	"time"

	"jordanella.com/slash-go/internal/logging"
)

// Error logging operations

// LogError creates a new error log entry. sessionID may be nil.
func (db *DB) LogError(sessionID *string, category, severity, component, message string) (int64, error) {
	var errorID int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO error_log (
				session_id, category, severity, component, message, occurred_at
			) VALUES (?, ?, ?, ?, ?, ?)
		`, sessionID, category, severity, component, message, time.Now())

		if err != nil {
			return fmt.Errorf("failed to insert error log: %w", err)
		}

		errorID, err = result.LastInsertId()
		return err
	})

	if err != nil {
		return 0, err
	}

	return errorID, nil
}

// LogReport stores an ErrorReporter report. It is meant to be registered
// with ErrorReporter.OnError.
func (db *DB) LogReport(report *logging.ErrorReport) {
	message := report.Message
	if report.Error != nil {
		message += ": " + report.Error.Error()
	}
	var sessionID *string
	if id, ok := report.Context["session"].(string); ok {
		sessionID = &id
	}

	if _, err := db.LogError(sessionID, string(report.Category), string(report.Severity), report.Component, message); err != nil {
		log.Error("failed to persist error report", err)
	}
}

// GetRecentErrors returns the most recent errors
func (db *DB) GetRecentErrors(limit int) ([]*ErrorLog, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(`
		SELECT id, session_id, category, severity, component, message, occurred_at
		FROM error_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errors := []*ErrorLog{}
	for rows.Next() {
		e := &ErrorLog{}
		err := rows.Scan(&e.ID, &e.SessionID, &e.Category, &e.Severity, &e.Component, &e.Message, &e.OccurredAt)
		if err != nil {
			return nil, err
		}
		errors = append(errors, e)
	}

	return errors, rows.Err()
}

// GetErrorStatsByCategory returns error counts grouped by category
func (db *DB) GetErrorStatsByCategory(startDate, endDate time.Time) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT category, COUNT(*) as count
		FROM error_log
		WHERE occurred_at BETWEEN ? AND ?
		GROUP BY category
	`, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats[category] = count
	}

	return stats, rows.Err()
}

// DeleteOldErrors deletes error logs older than the specified date
func (db *DB) DeleteOldErrors(olderThan time.Time) (int64, error) {
	var deleted int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			DELETE FROM error_log
			WHERE occurred_at < ?
		`, olderThan)

		if err != nil {
			return err
		}

		deleted, err = result.RowsAffected()
		return err
	})

	return deleted, err
}
