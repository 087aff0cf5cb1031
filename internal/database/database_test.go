package database

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jordanella.com/slash-go/internal/logging"
	"jordanella.com/slash-go/internal/macro"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func sampleMacro(name string) *macro.Macro {
	m := macro.New(name)
	m.Actions = []macro.Action{
		{X: 100, Y: 200, Timestamp: 1000},
		{X: 150, Y: 250, Timestamp: 1750},
	}
	m.MonitorRegion = macro.Region{X: 10, Y: 10, Width: 50, Height: 20}
	return m
}

func TestDatabaseInitialization(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// Second run is a no-op
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to re-run migrations: %v", err)
	}

	version, err := db.GetVersion()
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("Expected version %d, got %d", LatestVersion(), version)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	for _, table := range []string{"macros", "sessions", "error_log"} {
		if _, ok := stats[table]; !ok {
			t.Errorf("stats missing table %s", table)
		}
	}
}

func TestMacroOperations(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveMacro(sampleMacro("farm")); err != nil {
		t.Fatalf("SaveMacro failed: %v", err)
	}

	got, err := db.GetMacro("farm")
	if err != nil {
		t.Fatalf("GetMacro failed: %v", err)
	}
	if len(got.Actions) != 2 || got.Actions[1].X != 150 {
		t.Errorf("unexpected actions: %+v", got.Actions)
	}
	if got.MonitorRegion.Width != 50 {
		t.Errorf("monitor region not stored: %+v", got.MonitorRegion)
	}

	// Overwrite keeps a single row
	updated := sampleMacro("farm")
	updated.Actions = updated.Actions[:1]
	if err := db.SaveMacro(updated); err != nil {
		t.Fatalf("SaveMacro overwrite failed: %v", err)
	}
	if err := db.SaveMacro(sampleMacro("boss")); err != nil {
		t.Fatalf("SaveMacro failed: %v", err)
	}

	list, err := db.ListMacros()
	if err != nil {
		t.Fatalf("ListMacros failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 macros, got %d", len(list))
	}
	counts := map[string]int{}
	for _, r := range list {
		counts[r.Name] = r.ActionCount
	}
	if counts["farm"] != 1 || counts["boss"] != 2 {
		t.Errorf("unexpected action counts: %v", counts)
	}

	if err := db.DeleteMacro("farm"); err != nil {
		t.Fatalf("DeleteMacro failed: %v", err)
	}
	if _, err := db.GetMacro("farm"); !errors.Is(err, ErrMacroNotFound) {
		t.Errorf("Expected ErrMacroNotFound, got %v", err)
	}
	if err := db.DeleteMacro("farm"); !errors.Is(err, ErrMacroNotFound) {
		t.Errorf("Expected ErrMacroNotFound on second delete, got %v", err)
	}
}

func TestSaveMacroValidates(t *testing.T) {
	db := openTestDB(t)

	if err := db.SaveMacro(macro.New("")); !errors.Is(err, macro.ErrInvalidMacro) {
		t.Errorf("Expected ErrInvalidMacro for unnamed macro, got %v", err)
	}

	bad := sampleMacro("bad")
	bad.TriggerSensitivity = 2
	if err := db.SaveMacro(bad); !errors.Is(err, macro.ErrInvalidMacro) {
		t.Errorf("Expected ErrInvalidMacro, got %v", err)
	}
}

func TestSessionHistory(t *testing.T) {
	db := openTestDB(t)

	start := time.Now().Add(-time.Minute)
	if err := db.StartSession("s-1", "farm", true, start); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := db.StartSession("s-2", "boss", false, start.Add(time.Second)); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	running, err := db.GetSession("s-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !running.Running() || running.Outcome != "RUNNING" || !running.Monitored {
		t.Errorf("unexpected running session: %+v", running)
	}

	if err := db.EndSession("s-1", "PAUSED_BY_STATE", 4, start.Add(30*time.Second), ""); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if err := db.EndSession("s-2", "ABORTED", 1, start.Add(40*time.Second), "device offline"); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	ended, err := db.GetSession("s-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if ended.Running() {
		t.Error("session should have ended")
	}
	if ended.Dispatched != 4 || ended.Outcome != "PAUSED_BY_STATE" {
		t.Errorf("unexpected ended session: %+v", ended)
	}
	if ended.DurationMs == nil || *ended.DurationMs != 30000 {
		t.Errorf("duration = %v, want 30000", ended.DurationMs)
	}
	if ended.ErrorMessage != nil {
		t.Errorf("unexpected error message %q", *ended.ErrorMessage)
	}

	all, err := db.ListSessions("", 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "s-2" {
		t.Errorf("expected newest first, got %d sessions", len(all))
	}

	farm, err := db.ListSessions("farm", 10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(farm) != 1 {
		t.Errorf("expected 1 farm session, got %d", len(farm))
	}

	stats, err := db.GetOutcomeStats(start.Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetOutcomeStats failed: %v", err)
	}
	if stats["PAUSED_BY_STATE"] != 1 || stats["ABORTED"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}

	if err := db.EndSession("missing", "FINISHED", 0, time.Now(), ""); err == nil {
		t.Error("expected error ending an unknown session")
	}
}

func TestErrorLogging(t *testing.T) {
	db := openTestDB(t)

	if err := db.StartSession("s-1", "farm", true, time.Now()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	reporter := logging.NewErrorReporter(10)
	reporter.OnError(db.LogReport)
	reporter.Report(logging.ErrorCategoryCapture, logging.ErrorSeverityLow, "Monitor", "capture failed",
		errors.New("screen off"), map[string]interface{}{"session": "s-1"})

	if _, err := db.LogError(nil, "storage", "high", "CLI", "disk full"); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}

	recent, err := db.GetRecentErrors(10)
	if err != nil {
		t.Fatalf("GetRecentErrors failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(recent))
	}

	var capture *ErrorLog
	for _, e := range recent {
		if e.Category == "capture" {
			capture = e
		}
	}
	if capture == nil {
		t.Fatal("capture report not persisted")
	}
	if capture.Message != "capture failed: screen off" {
		t.Errorf("message = %q", capture.Message)
	}
	if capture.SessionID == nil || *capture.SessionID != "s-1" {
		t.Errorf("session id = %v", capture.SessionID)
	}

	stats, err := db.GetErrorStatsByCategory(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("GetErrorStatsByCategory failed: %v", err)
	}
	if stats["capture"] != 1 || stats["storage"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}

	deleted, err := db.DeleteOldErrors(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteOldErrors failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d", deleted)
	}
}

func TestTransactions(t *testing.T) {
	db := openTestDB(t)

	err := db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO macros (name, data, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			"test", "{}", time.Now(), time.Now())
		if err != nil {
			return err
		}

		// Force an error to trigger rollback
		_, err = tx.Exec("INVALID SQL QUERY")
		return err
	})
	if err == nil {
		t.Fatal("Expected transaction error")
	}

	macros, err := db.ListMacros()
	if err != nil {
		t.Fatalf("Failed to list macros: %v", err)
	}
	if len(macros) != 0 {
		t.Error("Transaction did not rollback correctly")
	}
}

func TestBackup(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMacro(sampleMacro("farm")); err != nil {
		t.Fatalf("SaveMacro: %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "backups", "copy.db")
	if err := db.Backup(backupPath); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	copyDB, err := Open(backupPath)
	if err != nil {
		t.Fatalf("Failed to open backup: %v", err)
	}
	defer copyDB.Close()

	m, err := copyDB.GetMacro("farm")
	if err != nil {
		t.Fatalf("backup is missing the macro: %v", err)
	}
	if len(m.Actions) != 2 {
		t.Errorf("backup macro has %d actions, want 2", len(m.Actions))
	}
	if copyDB.Path() != backupPath {
		t.Errorf("Path() = %q", copyDB.Path())
	}
}
