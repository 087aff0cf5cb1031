package replay

import (
	"context"
	"fmt"

	"jordanella.com/slash-go/internal/logging"
	"jordanella.com/slash-go/internal/monitor"
)

// TapRecovery taps a fixed point, typically a rest or potion button, when
// replay pauses.
type TapRecovery struct {
	Sink  Dispatcher
	X, Y  float64
	Label string
}

// Recover implements RecoveryAction
func (r TapRecovery) Recover(ctx context.Context, state monitor.GameState) error {
	if r.Sink == nil {
		return fmt.Errorf("recovery %q has no input sink", r.Label)
	}
	logging.NewLogger("Replay").InfoWithContext("running recovery", map[string]interface{}{
		"label": r.Label,
		"state": state.String(),
		"x":     r.X,
		"y":     r.Y,
	})
	return r.Sink.Tap(ctx, r.X, r.Y)
}

// RecoveryFunc adapts a function to RecoveryAction
type RecoveryFunc func(ctx context.Context, state monitor.GameState) error

// Recover implements RecoveryAction
func (f RecoveryFunc) Recover(ctx context.Context, state monitor.GameState) error {
	return f(ctx, state)
}
