// Package config loads and saves Settings.ini.
package config

import (
	"errors"
	"fmt"
	"time"

	"jordanella.com/slash-go/internal/classifier"
	"jordanella.com/slash-go/internal/cv"
)

// Config is the full contents of Settings.ini
type Config struct {
	Capture  CaptureSettings
	Monitor  MonitorSettings
	Replay   ReplaySettings
	Models   ModelSettings
	Storage  StorageSettings
	Logging  LoggingSettings
	Schedule []ScheduleEntry
}

// CaptureSettings selects and configures the capture/input backend
type CaptureSettings struct {
	Backend         cv.CaptureBackend
	ADBPath         string // Folder or full path; empty searches PATH
	ADBPort         string // Empty auto-detects
	BrowserURL      string
	BrowserHeadless bool
	Display         int
	TitleBarHeight  int
	CacheMs         int
}

// MonitorSettings configures the state monitor
type MonitorSettings struct {
	IntervalMs int
	Fallback   string // "color" or "none"
}

// ReplaySettings configures the replay engine and its recovery tap
type ReplaySettings struct {
	PollMs          int
	ClickSpacing    bool
	RecoveryEnabled bool
	RecoveryX       float64
	RecoveryY       float64
	RecoveryLabel   string
}

// ModelSettings locates the classifier models and their runner
type ModelSettings struct {
	Dir       string
	Runner    string
	TimeoutMs int

	StaminaFile string
	EnemyFile   string
	ItemFile    string

	StaminaNorm string
	EnemyNorm   string
	ItemNorm    string
}

// StorageSettings locates the database and macro files
type StorageSettings struct {
	DBPath   string
	MacroDir string
}

// LoggingSettings configures the logrus backend and the event log
type LoggingSettings struct {
	Level       string
	Format      string
	EventLogDir string
}

// ScheduleEntry replays a macro on a cron schedule
type ScheduleEntry struct {
	Name      string
	Spec      string // Cron expression, seconds field first
	Macro     string
	Monitored bool
	Enabled   bool
}

// Fallback modes for [Monitor] fallback
const (
	FallbackColor = "color"
	FallbackNone  = "none"
)

// NewDefaultConfig returns the configuration written for a fresh install
func NewDefaultConfig() *Config {
	stamina, enemy, item := classifier.StaminaSpec(), classifier.EnemySpec(), classifier.ItemSpec()
	return &Config{
		Capture: CaptureSettings{
			Backend:         cv.CaptureBackendADB,
			BrowserURL:      "about:blank",
			BrowserHeadless: true,
			CacheMs:         100,
		},
		Monitor: MonitorSettings{
			IntervalMs: 500,
			Fallback:   FallbackColor,
		},
		Replay: ReplaySettings{
			PollMs:          50,
			RecoveryEnabled: true,
			RecoveryX:       200,
			RecoveryY:       200,
			RecoveryLabel:   "rest",
		},
		Models: ModelSettings{
			Dir:         "models",
			Runner:      "tflite-runner",
			TimeoutMs:   2000,
			StaminaFile: stamina.File,
			EnemyFile:   enemy.File,
			ItemFile:    item.File,
			StaminaNorm: stamina.Norm.String(),
			EnemyNorm:   enemy.Norm.String(),
			ItemNorm:    item.Norm.String(),
		},
		Storage: StorageSettings{
			DBPath:   "slash.db",
			MacroDir: "macros",
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	var errs []error
	switch c.Capture.Backend {
	case cv.CaptureBackendADB, cv.CaptureBackendBrowser, cv.CaptureBackendDesktop:
	default:
		errs = append(errs, fmt.Errorf("capture backend %q is not adb, browser or desktop", c.Capture.Backend))
	}
	if c.Monitor.IntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("monitor interval must be positive, got %d", c.Monitor.IntervalMs))
	}
	if c.Monitor.Fallback != FallbackColor && c.Monitor.Fallback != FallbackNone {
		errs = append(errs, fmt.Errorf("monitor fallback %q is not color or none", c.Monitor.Fallback))
	}
	if c.Replay.PollMs <= 0 {
		errs = append(errs, fmt.Errorf("replay poll interval must be positive, got %d", c.Replay.PollMs))
	}
	for _, n := range []string{c.Models.StaminaNorm, c.Models.EnemyNorm, c.Models.ItemNorm} {
		if _, err := cv.ParseNormalization(n); err != nil {
			errs = append(errs, err)
		}
	}
	seen := make(map[string]bool)
	for _, e := range c.Schedule {
		if e.Name == "" || e.Spec == "" || e.Macro == "" {
			errs = append(errs, fmt.Errorf("schedule entry %q needs spec and macro", e.Name))
		}
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("duplicate schedule entry %q", e.Name))
		}
		seen[e.Name] = true
	}
	return errors.Join(errs...)
}

// CaptureConfig converts the capture section for cv.NewService
func (c *Config) CaptureConfig() *cv.CaptureConfig {
	return &cv.CaptureConfig{
		Backend:        c.Capture.Backend,
		TitleBarHeight: c.Capture.TitleBarHeight,
		CacheDuration:  time.Duration(c.Capture.CacheMs) * time.Millisecond,
	}
}

// MonitorInterval is the state monitor's sampling period
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMs) * time.Millisecond
}

// PollInterval is the replay engine's state polling period
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Replay.PollMs) * time.Millisecond
}

// ModelTimeout bounds one external inference
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Models.TimeoutMs) * time.Millisecond
}

// ModelSpecs returns the bundled specs with file names and normalization
// taken from the [Models] section. Unparseable normalization keeps the default.
func (c *Config) ModelSpecs() (stamina, enemy, item classifier.ModelSpec) {
	stamina = overrideSpec(classifier.StaminaSpec(), c.Models.StaminaFile, c.Models.StaminaNorm)
	enemy = overrideSpec(classifier.EnemySpec(), c.Models.EnemyFile, c.Models.EnemyNorm)
	item = overrideSpec(classifier.ItemSpec(), c.Models.ItemFile, c.Models.ItemNorm)
	return stamina, enemy, item
}

func overrideSpec(spec classifier.ModelSpec, file, norm string) classifier.ModelSpec {
	if file != "" {
		spec.File = file
	}
	if n, err := cv.ParseNormalization(norm); err == nil && norm != "" {
		spec.Norm = n
	}
	return spec
}

// ScheduleByName finds a schedule entry
func (c *Config) ScheduleByName(name string) (ScheduleEntry, bool) {
	for _, e := range c.Schedule {
		if e.Name == name {
			return e, true
		}
	}
	return ScheduleEntry{}, false
}
