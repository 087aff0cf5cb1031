package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

// migrations is the ordered list of all database migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up:          migration001Up,
		Down:        migration001Down,
	},
	{
		Version:     2,
		Description: "Create macros table",
		Up:          migration002Up,
		Down:        migration002Down,
	},
	{
		Version:     3,
		Description: "Create sessions and error_log tables",
		Up:          migration003Up,
		Down:        migration003Down,
	},
}

// LatestVersion is the schema version after all migrations
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations runs all pending database migrations
func (db *DB) RunMigrations() error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		log.InfoWithContext("running migration", map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})

		err := db.ExecTx(func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, migration.Version, migration.Description, time.Now())

			return err
		})

		if err != nil {
			return err
		}
	}

	return nil
}

// getCurrentVersion returns the current schema version
func (db *DB) getCurrentVersion() (int, error) {
	var tableExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)

	if err != nil {
		return 0, err
	}

	if !tableExists {
		return 0, nil
	}

	var version int
	err = db.conn.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)

	if err != nil {
		return 0, err
	}

	return version, nil
}

// Migration 001: Schema version tracking table
func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration001Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS schema_version`)
	return err
}

// Migration 002: Saved macros, stored as their JSON file form
func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE macros (
			name TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			action_count INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX idx_macros_updated ON macros(updated_at);
	`)
	return err
}

func migration002Down(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_macros_updated;
		DROP TABLE IF EXISTS macros;
	`)
	return err
}

// Migration 003: Replay sessions and handled errors
func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			macro_name TEXT NOT NULL,
			monitored BOOLEAN NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_ms INTEGER,
			outcome TEXT NOT NULL DEFAULT 'RUNNING',
			dispatched INTEGER NOT NULL DEFAULT 0,
			error_message TEXT
		);

		CREATE INDEX idx_sessions_macro ON sessions(macro_name);
		CREATE INDEX idx_sessions_started ON sessions(started_at);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE error_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
		);

		CREATE INDEX idx_error_category ON error_log(category);
		CREATE INDEX idx_error_occurred ON error_log(occurred_at);
	`)
	return err
}

func migration003Down(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_error_occurred;
		DROP INDEX IF EXISTS idx_error_category;
		DROP TABLE IF EXISTS error_log;

		DROP INDEX IF EXISTS idx_sessions_started;
		DROP INDEX IF EXISTS idx_sessions_macro;
		DROP TABLE IF EXISTS sessions;
	`)
	return err
}
