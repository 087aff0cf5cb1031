package monitor

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// GameState is the coarse game condition the replay engine reacts to
type GameState int32

const (
	Idle GameState = iota
	StaminaFull
	StaminaLow
	StaminaEmpty
	InBattle
)

var stateNames = map[GameState]string{
	Idle:         "IDLE",
	StaminaFull:  "STAMINA_FULL",
	StaminaLow:   "STAMINA_LOW",
	StaminaEmpty: "STAMINA_EMPTY",
	InBattle:     "IN_BATTLE",
}

func (s GameState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameState(%d)", int32(s))
}

// ParseGameState parses the String form, case-insensitively
func ParseGameState(s string) (GameState, error) {
	for state, name := range stateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return Idle, fmt.Errorf("unknown game state %q", s)
}

// LowResource reports whether replay must stop and recover
func (s GameState) LowResource() bool {
	return s == StaminaLow || s == StaminaEmpty
}

// StateCell is a single-writer, multi-reader cell holding the latest
// GameState. The zero value holds Idle.
type StateCell struct {
	v atomic.Int32
}

// Load returns the latest published state
func (c *StateCell) Load() GameState {
	return GameState(c.v.Load())
}

// Store publishes s and returns the previous state
func (c *StateCell) Store(s GameState) GameState {
	return GameState(c.v.Swap(int32(s)))
}

// StateForLabel maps stamina-model and colour-heuristic labels to a state.
// ok is false for labels that should not be published.
func StateForLabel(label string) (state GameState, ok bool) {
	switch label {
	case "FULL", "GOOD":
		return StaminaFull, true
	case "LOW":
		return StaminaLow, true
	case "EMPTY", "DANGER":
		return StaminaEmpty, true
	case "SPECIAL":
		return InBattle, true
	default:
		return Idle, false
	}
}
