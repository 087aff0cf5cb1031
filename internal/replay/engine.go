// Package replay re-issues recorded actions at their original relative
// timing, consulting the game state before every dispatch.
package replay

import (
	"context"
	"fmt"
	"time"

	"jordanella.com/slash-go/internal/logging"
	"jordanella.com/slash-go/internal/macro"
	"jordanella.com/slash-go/internal/monitor"
)

// DefaultPollInterval bounds how long a wait goes without re-reading the state
const DefaultPollInterval = 50 * time.Millisecond

// Outcome is how a replay run ended
type Outcome int

const (
	Finished Outcome = iota
	Cancelled
	PausedByState
	Aborted // the input sink failed
)

func (o Outcome) String() string {
	switch o {
	case Finished:
		return "FINISHED"
	case Cancelled:
		return "CANCELLED"
	case PausedByState:
		return "PAUSED_BY_STATE"
	case Aborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Dispatcher delivers a tap to the game
type Dispatcher interface {
	Tap(ctx context.Context, x, y float64) error
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, x, y float64) error

// Tap implements Dispatcher
func (f DispatcherFunc) Tap(ctx context.Context, x, y float64) error { return f(ctx, x, y) }

// StateSource reads the latest published game state
type StateSource interface {
	Load() monitor.GameState
}

// RecoveryAction runs once when replay stops for a low-resource state
type RecoveryAction interface {
	Recover(ctx context.Context, state monitor.GameState) error
}

// Result summarizes a run
type Result struct {
	Outcome    Outcome
	Dispatched int
	State      monitor.GameState // state that triggered PausedByState
	Elapsed    time.Duration
}

// Engine replays macros. The zero value is not usable; use NewEngine.
type Engine struct {
	pollInterval  time.Duration
	enforceSpaced bool
	onAction      func(index int, a macro.Action)
	logger        *logging.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithPollInterval sets how often a wait re-reads the state
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithClickSpacing makes the macro's ClickIntervalMs a minimum gap between
// consecutive dispatches. Off by default, so recorded timing is kept.
func WithClickSpacing(enabled bool) EngineOption {
	return func(e *Engine) { e.enforceSpaced = enabled }
}

// WithActionHook is called after every successful dispatch
func WithActionHook(fn func(index int, a macro.Action)) EngineOption {
	return func(e *Engine) { e.onAction = fn }
}

// NewEngine creates an engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		pollInterval: DefaultPollInterval,
		logger:       logging.NewLogger("Replay"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run dispatches m's actions, each at (timestamp - first timestamp) after the
// start of the run. state may be nil for unmonitored replay; recovery may be
// nil. The returned error is non-nil only for Aborted.
func (e *Engine) Run(ctx context.Context, m *macro.Macro, sink Dispatcher, state StateSource, recovery RecoveryAction) (Result, error) {
	start := time.Now()
	res := Result{Outcome: Finished}
	if len(m.Actions) == 0 {
		return res, nil
	}

	t0 := m.Actions[0].Timestamp
	spacing := time.Duration(m.ClickIntervalMs) * time.Millisecond
	var lastOffset time.Duration

	finish := func(o Outcome) (Result, error) {
		res.Outcome = o
		res.Elapsed = time.Since(start)
		return res, nil
	}

	for i, action := range m.Actions {
		offset := time.Duration(action.Timestamp-t0) * time.Millisecond
		if e.enforceSpaced && i > 0 && offset < lastOffset+spacing {
			offset = lastOffset + spacing
		}

		s, paused, cancelled := e.waitUntil(ctx, start, offset, state)
		if cancelled {
			return finish(Cancelled)
		}
		if paused {
			return e.pause(ctx, &res, start, s, recovery)
		}

		// state check happens-before dispatch
		if ctx.Err() != nil {
			return finish(Cancelled)
		}
		if state != nil {
			if s := state.Load(); s.LowResource() {
				return e.pause(ctx, &res, start, s, recovery)
			}
		}

		if err := sink.Tap(ctx, action.X, action.Y); err != nil {
			if ctx.Err() != nil {
				return finish(Cancelled)
			}
			res.Outcome = Aborted
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("dispatch of action %d at (%.0f,%.0f) failed: %w", i, action.X, action.Y, err)
		}

		res.Dispatched++
		lastOffset = time.Since(start)
		if e.onAction != nil {
			e.onAction(i, action)
		}
	}

	return finish(Finished)
}

// waitUntil sleeps until offset after start, waking every poll interval to
// check the state when one is given. paused carries the low-resource state seen.
func (e *Engine) waitUntil(ctx context.Context, start time.Time, offset time.Duration, state StateSource) (s monitor.GameState, paused, cancelled bool) {
	for {
		if ctx.Err() != nil {
			return s, false, true
		}
		if state != nil {
			if s = state.Load(); s.LowResource() {
				return s, true, false
			}
		}

		remaining := offset - time.Since(start)
		if remaining <= 0 {
			return s, false, false
		}
		if state != nil && remaining > e.pollInterval {
			remaining = e.pollInterval
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s, false, true
		case <-timer.C:
		}
	}
}

func (e *Engine) pause(ctx context.Context, res *Result, start time.Time, s monitor.GameState, recovery RecoveryAction) (Result, error) {
	res.Outcome = PausedByState
	res.State = s
	e.logger.InfoWithContext("replay paused by game state", map[string]interface{}{
		"state":      s.String(),
		"dispatched": res.Dispatched,
	})

	if recovery != nil {
		if err := recovery.Recover(ctx, s); err != nil {
			e.logger.Error("recovery action failed", err)
		}
	}

	res.Elapsed = time.Since(start)
	return *res, nil
}
