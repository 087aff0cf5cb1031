package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jordanella.com/slash-go/internal/macro"
)

// ErrMacroNotFound is returned when no macro has the requested name
var ErrMacroNotFound = errors.New("macro not found")

// SaveMacro inserts or replaces a macro by name
func (db *DB) SaveMacro(m *macro.Macro) error {
	if m.Name == "" {
		return &macro.ValidationError{Field: "name", Err: errors.New("is empty")}
	}
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := macro.Marshal(m)
	if err != nil {
		return err
	}

	now := time.Now()
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO macros (name, data, action_count, duration_ms, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				data = excluded.data,
				action_count = excluded.action_count,
				duration_ms = excluded.duration_ms,
				updated_at = excluded.updated_at
		`, m.Name, string(data), len(m.Actions), m.Duration().Milliseconds(), now, now)

		if err != nil {
			return fmt.Errorf("failed to save macro %q: %w", m.Name, err)
		}
		return nil
	})
}

// GetMacro loads a macro by name
func (db *DB) GetMacro(name string) (*macro.Macro, error) {
	var data string
	err := db.conn.QueryRow(`SELECT data FROM macros WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%q: %w", name, ErrMacroNotFound)
	}
	if err != nil {
		return nil, err
	}

	m, err := macro.Unmarshal([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("stored macro %q is corrupt: %w", name, err)
	}
	m.Name = name
	return m, nil
}

// ListMacros returns all saved macros, most recently updated first
func (db *DB) ListMacros() ([]*MacroRecord, error) {
	rows, err := db.conn.Query(`
		SELECT name, action_count, duration_ms, created_at, updated_at
		FROM macros
		ORDER BY updated_at DESC, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*MacroRecord{}
	for rows.Next() {
		r := &MacroRecord{}
		if err := rows.Scan(&r.Name, &r.ActionCount, &r.DurationMs, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// DeleteMacro removes a macro by name
func (db *DB) DeleteMacro(name string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM macros WHERE name = ?`, name)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%q: %w", name, ErrMacroNotFound)
		}
		return nil
	})
}
