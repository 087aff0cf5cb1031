package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"jordanella.com/slash-go/internal/cv"
)

const schedulePrefix = "Schedule."

// LoadFromINI loads configuration from a Settings.ini file. Missing keys
// take their NewDefaultConfig value.
func LoadFromINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	def := NewDefaultConfig()
	config := &Config{}

	// Capture
	section := file.Section("Capture")
	config.Capture.Backend = cv.CaptureBackend(strings.ToLower(section.Key("backend").MustString(string(def.Capture.Backend))))
	config.Capture.ADBPath = section.Key("adbPath").MustString(def.Capture.ADBPath)
	config.Capture.ADBPort = section.Key("adbPort").MustString(def.Capture.ADBPort)
	config.Capture.BrowserURL = section.Key("browserURL").MustString(def.Capture.BrowserURL)
	config.Capture.BrowserHeadless = section.Key("browserHeadless").MustBool(def.Capture.BrowserHeadless)
	config.Capture.Display = section.Key("display").MustInt(def.Capture.Display)
	config.Capture.TitleBarHeight = section.Key("titleBarHeight").MustInt(def.Capture.TitleBarHeight)
	config.Capture.CacheMs = section.Key("cacheMs").MustInt(def.Capture.CacheMs)

	// Monitor
	section = file.Section("Monitor")
	config.Monitor.IntervalMs = section.Key("intervalMs").MustInt(def.Monitor.IntervalMs)
	config.Monitor.Fallback = strings.ToLower(section.Key("fallback").MustString(def.Monitor.Fallback))

	// Replay
	section = file.Section("Replay")
	config.Replay.PollMs = section.Key("pollMs").MustInt(def.Replay.PollMs)
	config.Replay.ClickSpacing = section.Key("clickSpacing").MustBool(def.Replay.ClickSpacing)
	config.Replay.RecoveryEnabled = section.Key("recoveryEnabled").MustBool(def.Replay.RecoveryEnabled)
	config.Replay.RecoveryX = section.Key("recoveryX").MustFloat64(def.Replay.RecoveryX)
	config.Replay.RecoveryY = section.Key("recoveryY").MustFloat64(def.Replay.RecoveryY)
	config.Replay.RecoveryLabel = section.Key("recoveryLabel").MustString(def.Replay.RecoveryLabel)

	// Models
	section = file.Section("Models")
	config.Models.Dir = section.Key("dir").MustString(def.Models.Dir)
	config.Models.Runner = section.Key("runner").MustString(def.Models.Runner)
	config.Models.TimeoutMs = section.Key("timeoutMs").MustInt(def.Models.TimeoutMs)
	config.Models.StaminaFile = section.Key("stamina").MustString(def.Models.StaminaFile)
	config.Models.EnemyFile = section.Key("enemy").MustString(def.Models.EnemyFile)
	config.Models.ItemFile = section.Key("item").MustString(def.Models.ItemFile)
	config.Models.StaminaNorm = section.Key("staminaNorm").MustString(def.Models.StaminaNorm)
	config.Models.EnemyNorm = section.Key("enemyNorm").MustString(def.Models.EnemyNorm)
	config.Models.ItemNorm = section.Key("itemNorm").MustString(def.Models.ItemNorm)

	// Storage
	section = file.Section("Storage")
	config.Storage.DBPath = section.Key("dbPath").MustString(def.Storage.DBPath)
	config.Storage.MacroDir = section.Key("macroDir").MustString(def.Storage.MacroDir)

	// Logging
	section = file.Section("Logging")
	config.Logging.Level = section.Key("level").MustString(def.Logging.Level)
	config.Logging.Format = section.Key("format").MustString(def.Logging.Format)
	config.Logging.EventLogDir = section.Key("eventLogDir").MustString(def.Logging.EventLogDir)

	// Schedule entries, one [Schedule.<name>] section each
	for _, s := range file.Sections() {
		name, ok := strings.CutPrefix(s.Name(), schedulePrefix)
		if !ok || name == "" {
			continue
		}
		config.Schedule = append(config.Schedule, ScheduleEntry{
			Name:      name,
			Spec:      s.Key("spec").String(),
			Macro:     s.Key("macro").String(),
			Monitored: s.Key("monitored").MustBool(false),
			Enabled:   s.Key("enabled").MustBool(true),
		})
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// LoadOrCreate loads path, writing the defaults there first if it does not exist
func LoadOrCreate(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveToINI(NewDefaultConfig(), path); err != nil {
			return nil, err
		}
	}
	return LoadFromINI(path)
}

// SaveToINI saves configuration to an INI file
func SaveToINI(config *Config, path string) error {
	file := ini.Empty()

	// Capture
	section := file.Section("Capture")
	section.Key("backend").SetValue(string(config.Capture.Backend))
	section.Key("adbPath").SetValue(config.Capture.ADBPath)
	section.Key("adbPort").SetValue(config.Capture.ADBPort)
	section.Key("browserURL").SetValue(config.Capture.BrowserURL)
	section.Key("browserHeadless").SetValue(fmt.Sprintf("%t", config.Capture.BrowserHeadless))
	section.Key("display").SetValue(fmt.Sprintf("%d", config.Capture.Display))
	section.Key("titleBarHeight").SetValue(fmt.Sprintf("%d", config.Capture.TitleBarHeight))
	section.Key("cacheMs").SetValue(fmt.Sprintf("%d", config.Capture.CacheMs))

	// Monitor
	section = file.Section("Monitor")
	section.Key("intervalMs").SetValue(fmt.Sprintf("%d", config.Monitor.IntervalMs))
	section.Key("fallback").SetValue(config.Monitor.Fallback)

	// Replay
	section = file.Section("Replay")
	section.Key("pollMs").SetValue(fmt.Sprintf("%d", config.Replay.PollMs))
	section.Key("clickSpacing").SetValue(fmt.Sprintf("%t", config.Replay.ClickSpacing))
	section.Key("recoveryEnabled").SetValue(fmt.Sprintf("%t", config.Replay.RecoveryEnabled))
	section.Key("recoveryX").SetValue(fmt.Sprintf("%g", config.Replay.RecoveryX))
	section.Key("recoveryY").SetValue(fmt.Sprintf("%g", config.Replay.RecoveryY))
	section.Key("recoveryLabel").SetValue(config.Replay.RecoveryLabel)

	// Models
	section = file.Section("Models")
	section.Key("dir").SetValue(config.Models.Dir)
	section.Key("runner").SetValue(config.Models.Runner)
	section.Key("timeoutMs").SetValue(fmt.Sprintf("%d", config.Models.TimeoutMs))
	section.Key("stamina").SetValue(config.Models.StaminaFile)
	section.Key("enemy").SetValue(config.Models.EnemyFile)
	section.Key("item").SetValue(config.Models.ItemFile)
	section.Key("staminaNorm").SetValue(config.Models.StaminaNorm)
	section.Key("enemyNorm").SetValue(config.Models.EnemyNorm)
	section.Key("itemNorm").SetValue(config.Models.ItemNorm)

	// Storage
	section = file.Section("Storage")
	section.Key("dbPath").SetValue(config.Storage.DBPath)
	section.Key("macroDir").SetValue(config.Storage.MacroDir)

	// Logging
	section = file.Section("Logging")
	section.Key("level").SetValue(config.Logging.Level)
	section.Key("format").SetValue(config.Logging.Format)
	section.Key("eventLogDir").SetValue(config.Logging.EventLogDir)

	for _, e := range config.Schedule {
		section = file.Section(schedulePrefix + e.Name)
		section.Key("spec").SetValue(e.Spec)
		section.Key("macro").SetValue(e.Macro)
		section.Key("monitored").SetValue(fmt.Sprintf("%t", e.Monitored))
		section.Key("enabled").SetValue(fmt.Sprintf("%t", e.Enabled))
	}

	return file.SaveTo(path)
}
