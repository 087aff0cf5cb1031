package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jordanella.com/slash-go/internal/cv"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MonitorInterval() != 500*time.Millisecond {
		t.Errorf("monitor interval = %v, want 500ms", cfg.MonitorInterval())
	}
	if cfg.PollInterval() != 50*time.Millisecond {
		t.Errorf("poll interval = %v, want 50ms", cfg.PollInterval())
	}
	if cfg.Replay.RecoveryX != 200 || cfg.Replay.RecoveryY != 200 {
		t.Errorf("recovery point = (%v,%v), want (200,200)", cfg.Replay.RecoveryX, cfg.Replay.RecoveryY)
	}
}

func TestLoadMissingKeysUseDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Settings.ini")
	content := "[Capture]\nbackend = Desktop\ndisplay = 1\n\n[Replay]\nrecoveryX = 150.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI: %v", err)
	}
	if cfg.Capture.Backend != cv.CaptureBackendDesktop {
		t.Errorf("backend = %q, want desktop", cfg.Capture.Backend)
	}
	if cfg.Capture.Display != 1 {
		t.Errorf("display = %d, want 1", cfg.Capture.Display)
	}
	if cfg.Replay.RecoveryX != 150.5 {
		t.Errorf("recoveryX = %v, want 150.5", cfg.Replay.RecoveryX)
	}
	if cfg.Replay.RecoveryY != 200 {
		t.Errorf("recoveryY = %v, want default 200", cfg.Replay.RecoveryY)
	}
	if cfg.Monitor.IntervalMs != 500 {
		t.Errorf("intervalMs = %d, want default 500", cfg.Monitor.IntervalMs)
	}
	if cfg.Monitor.Fallback != FallbackColor {
		t.Errorf("fallback = %q, want color", cfg.Monitor.Fallback)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Settings.ini")

	want := NewDefaultConfig()
	want.Capture.Backend = cv.CaptureBackendBrowser
	want.Capture.BrowserURL = "https://game.example/play"
	want.Replay.ClickSpacing = true
	want.Models.EnemyNorm = "unit"
	want.Schedule = []ScheduleEntry{
		{Name: "morning", Spec: "0 0 7 * * *", Macro: "farm", Monitored: true, Enabled: true},
		{Name: "hourly", Spec: "@every 1h", Macro: "collect", Enabled: false},
	}

	if err := SaveToINI(want, path); err != nil {
		t.Fatalf("SaveToINI: %v", err)
	}
	got, err := LoadFromINI(path)
	if err != nil {
		t.Fatalf("LoadFromINI: %v", err)
	}

	if got.Capture.Backend != want.Capture.Backend || got.Capture.BrowserURL != want.Capture.BrowserURL {
		t.Errorf("capture = %+v, want %+v", got.Capture, want.Capture)
	}
	if !got.Replay.ClickSpacing {
		t.Error("clickSpacing was not kept")
	}
	if len(got.Schedule) != 2 {
		t.Fatalf("got %d schedule entries, want 2", len(got.Schedule))
	}
	morning, ok := got.ScheduleByName("morning")
	if !ok {
		t.Fatal("morning entry missing")
	}
	if morning != want.Schedule[0] {
		t.Errorf("morning = %+v, want %+v", morning, want.Schedule[0])
	}
	hourly, _ := got.ScheduleByName("hourly")
	if hourly.Enabled {
		t.Error("hourly should stay disabled")
	}

	_, enemy, _ := got.ModelSpecs()
	if enemy.Norm != cv.NormUnit {
		t.Errorf("enemy norm = %v, want unit", enemy.Norm)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", "[Capture]\nbackend = vnc\n", "capture backend"},
		{"zero interval", "[Monitor]\nintervalMs = 0\n", "monitor interval"},
		{"bad fallback", "[Monitor]\nfallback = guess\n", "monitor fallback"},
		{"bad norm", "[Models]\nstaminaNorm = zscore\n", "normalization"},
		{"schedule without macro", "[Schedule.x]\nspec = @every 1m\n", "needs spec and macro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Settings.ini")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFromINI(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Settings.ini")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if cfg.Storage.DBPath != "slash.db" {
		t.Errorf("dbPath = %q, want slash.db", cfg.Storage.DBPath)
	}
}

func TestCaptureConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Capture.TitleBarHeight = 32
	cfg.Capture.CacheMs = 250

	cc := cfg.CaptureConfig()
	if cc.TitleBarHeight != 32 {
		t.Errorf("title bar = %d, want 32", cc.TitleBarHeight)
	}
	if cc.CacheDuration != 250*time.Millisecond {
		t.Errorf("cache = %v, want 250ms", cc.CacheDuration)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Settings.ini")
	if err := SaveToINI(NewDefaultConfig(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	if err := Watch(ctx, path, func(c *Config) { reloaded <- c }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	changed := NewDefaultConfig()
	changed.Monitor.IntervalMs = 750
	if err := SaveToINI(changed, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Monitor.IntervalMs == 750 {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
