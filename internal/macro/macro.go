// Package macro holds the recorded macro model, its persisted shape and the
// action log that builds it.
package macro

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"
)

const (
	DefaultTriggerSensitivity = 0.8
	DefaultClickIntervalMs    = 1000
)

var (
	// ErrEmptyMacro is returned when replay is requested for a macro with no actions
	ErrEmptyMacro = errors.New("macro has no actions")
	// ErrMissingMonitorRegion is returned when monitored replay has no region to watch
	ErrMissingMonitorRegion = errors.New("macro has no monitor region")
	// ErrInvalidMacro is matched by every ValidationError
	ErrInvalidMacro = errors.New("invalid macro")
)

// ValidationError names the offending field
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid macro field %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidMacro }

// Action is one recorded pointer-down at screen coordinates
type Action struct {
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Timestamp int64   `json:"timestamp" yaml:"timestamp"` // wall-clock milliseconds
}

// Region is the rectangle the monitor samples
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Valid reports whether the region has a positive area
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Rect converts the region to an image rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", r.Width, r.Height, r.X, r.Y)
}

// Macro is a recorded action sequence plus its replay settings
type Macro struct {
	Name               string   `json:"name,omitempty" yaml:"name,omitempty"`
	Actions            []Action `json:"actions" yaml:"actions"`
	TriggerSensitivity float64  `json:"triggerSensitivity" yaml:"triggerSensitivity"`
	ClickIntervalMs    int64    `json:"clickIntervalMs" yaml:"clickIntervalMs"`
	MonitorRegion      Region   `json:"monitorRegion" yaml:"monitorRegion"`
}

// New returns an empty macro with default settings
func New(name string) *Macro {
	return &Macro{
		Name:               name,
		Actions:            []Action{},
		TriggerSensitivity: DefaultTriggerSensitivity,
		ClickIntervalMs:    DefaultClickIntervalMs,
	}
}

// Validate checks setting ranges. It does not require actions or a region.
func (m *Macro) Validate() error {
	if math.IsNaN(m.TriggerSensitivity) || m.TriggerSensitivity < 0 || m.TriggerSensitivity > 1 {
		return &ValidationError{"triggerSensitivity", fmt.Errorf("%v not in [0,1]", m.TriggerSensitivity)}
	}
	if m.ClickIntervalMs < 0 {
		return &ValidationError{"clickIntervalMs", fmt.Errorf("%d is negative", m.ClickIntervalMs)}
	}
	r := m.MonitorRegion
	if r.X < 0 || r.Y < 0 || r.Width < 0 || r.Height < 0 {
		return &ValidationError{"monitorRegion", fmt.Errorf("%+v has a negative component", r)}
	}
	return nil
}

// ReadyForReplay checks the macro can be replayed without monitoring
func (m *Macro) ReadyForReplay() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if len(m.Actions) == 0 {
		return ErrEmptyMacro
	}
	return nil
}

// ReadyForMonitoredReplay additionally requires a monitor region
func (m *Macro) ReadyForMonitoredReplay() error {
	if err := m.ReadyForReplay(); err != nil {
		return err
	}
	if !m.MonitorRegion.Valid() {
		return ErrMissingMonitorRegion
	}
	return nil
}

// Duration is the span between the first and last recorded action
func (m *Macro) Duration() time.Duration {
	if len(m.Actions) < 2 {
		return 0
	}
	return time.Duration(m.Actions[len(m.Actions)-1].Timestamp-m.Actions[0].Timestamp) * time.Millisecond
}

// Clone returns a deep copy
func (m *Macro) Clone() *Macro {
	c := *m
	c.Actions = append([]Action(nil), m.Actions...)
	return &c
}
