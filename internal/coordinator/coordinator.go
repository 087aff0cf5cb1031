// Package coordinator owns the recording/replay state machine and runs each
// replay session as a monitor goroutine plus a replay goroutine.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"jordanella.com/slash-go/internal/classifier"
	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/events"
	"jordanella.com/slash-go/internal/logging"
	"jordanella.com/slash-go/internal/macro"
	"jordanella.com/slash-go/internal/monitor"
	"jordanella.com/slash-go/internal/replay"
)

var (
	// ErrNotIdle is returned when an operation needs the coordinator idle
	ErrNotIdle = errors.New("coordinator is not idle")
	// ErrNoFrameSource is returned for monitored replay without a capture backend
	ErrNoFrameSource = errors.New("monitored replay needs a frame source and classifier")
)

// State is the coordinator's mode
type State int

const (
	Idle State = iota
	Recording
	Replaying
	ReplayingPaused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Recording:
		return "RECORDING"
	case Replaying:
		return "REPLAYING"
	case ReplayingPaused:
		return "REPLAYING_PAUSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionRecorder persists session history
type SessionRecorder interface {
	StartSession(id, macroName string, monitored bool, startedAt time.Time) error
	EndSession(id, outcome string, dispatched int, endedAt time.Time, errMsg string) error
}

// Config wires the coordinator to its collaborators. Sink is required;
// Source and Classifier are only needed for monitored replay.
type Config struct {
	Sink       replay.Dispatcher
	Source     cv.FrameSource
	Classifier classifier.Classifier
	Recovery   replay.RecoveryAction

	EngineOptions  []replay.EngineOption
	MonitorOptions []monitor.Option

	Events   events.Publisher
	Sessions SessionRecorder
	Now      func() time.Time
}

// ReplayOptions selects how a macro is replayed
type ReplayOptions struct {
	// Monitored runs the state monitor over the macro's MonitorRegion and
	// pauses on low stamina.
	Monitored bool
}

// Coordinator is safe for concurrent use
type Coordinator struct {
	cfg      Config
	recorder *macro.Recorder
	cell     monitor.StateCell
	logger   *logging.Logger

	mu      sync.Mutex
	state   State
	session *Session
}

// New creates an idle coordinator
func New(cfg Config) *Coordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{
		cfg:      cfg,
		recorder: macro.NewRecorder(),
		logger:   logging.NewLogger("Coordinator"),
	}
}

// State returns the current mode
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GameState returns the latest state published by the session's monitor
func (c *Coordinator) GameState() monitor.GameState {
	return c.cell.Load()
}

// Session returns the running session, or nil
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartRecording clears the action log and starts recording
func (c *Coordinator) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return fmt.Errorf("cannot start recording while %s: %w", c.state, ErrNotIdle)
	}
	c.recorder.StartRecording()
	c.state = Recording
	c.logger.Info("recording started")
	c.publish(events.NewRecordingEvent(events.EventTypeRecordingStarted, 0))
	return nil
}

// StopRecording returns to Idle and returns the recorded actions. Calling it
// when not recording returns the last log without changing state.
func (c *Coordinator) StopRecording() []macro.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Recording {
		return c.recorder.Snapshot()
	}
	c.recorder.StopRecording()
	c.state = Idle
	actions := c.recorder.Snapshot()
	c.logger.InfoWithContext("recording stopped", map[string]interface{}{"actions": len(actions)})
	c.publish(events.NewRecordingEvent(events.EventTypeRecordingStopped, len(actions)))
	return actions
}

// Record logs a tap at the current time. It reports whether the tap was kept.
func (c *Coordinator) Record(x, y float64) bool {
	return c.recorder.Record(x, y, c.cfg.Now().UnixMilli())
}

// StartReplay starts a session replaying m. The session stops when ctx is
// done, when Cancel is called, or when the macro ends.
func (c *Coordinator) StartReplay(ctx context.Context, m *macro.Macro, opts ReplayOptions) (*Session, error) {
	if m == nil {
		return nil, macro.ErrEmptyMacro
	}
	if opts.Monitored {
		if err := m.ReadyForMonitoredReplay(); err != nil {
			return nil, err
		}
		if c.cfg.Source == nil || c.cfg.Classifier == nil {
			return nil, ErrNoFrameSource
		}
	} else if err := m.ReadyForReplay(); err != nil {
		return nil, err
	}

	if c.cfg.Sink == nil {
		return nil, errors.New("replay needs an input sink")
	}

	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("cannot replay while %s: %w", state, ErrNotIdle)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        uuid.NewString(),
		Macro:     m.Clone(),
		StartTime: c.cfg.Now(),
		Monitored: opts.Monitored,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	c.cell.Store(monitor.Idle)
	c.state = Replaying
	c.session = s
	c.mu.Unlock()

	if c.cfg.Sessions != nil {
		if err := c.cfg.Sessions.StartSession(s.ID, s.Macro.Name, s.Monitored, s.StartTime); err != nil {
			c.logger.WarnWithContext("failed to record session start", map[string]interface{}{"error": err.Error()})
		}
	}
	c.logger.InfoWithContext("replay session started", map[string]interface{}{
		"session":   s.ID,
		"macro":     s.Macro.Name,
		"actions":   len(s.Macro.Actions),
		"monitored": s.Monitored,
	})
	c.publish(events.NewSessionStartedEvent(s.ID, s.Macro.Name, len(s.Macro.Actions), s.Monitored))

	go c.runSession(sessCtx, s)
	return s, nil
}

// Cancel stops the running session, if any
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.cancel()
	}
}

// Wait blocks until the running session, if any, has ended
func (c *Coordinator) Wait() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		<-s.done
	}
}

func (c *Coordinator) runSession(ctx context.Context, s *Session) {
	defer s.cancel()

	var (
		wg          sync.WaitGroup
		state       replay.StateSource
		sampled     <-chan struct{}
		stopMonitor = func() {}
	)

	if s.Monitored {
		monCtx, cancel := context.WithCancel(ctx)
		stopMonitor = cancel
		mon := monitor.New(c.cfg.Source, c.cfg.Classifier, &c.cell, c.monitorOptions()...)
		region := s.Macro.MonitorRegion.Rect()
		state = &c.cell
		sampled = mon.Ready()

		wg.Add(1)
		go func() {
			defer wg.Done()
			mon.Run(monCtx, region)
		}()
	}

	var (
		res replay.Result
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stopMonitor()

		// the first action must see a real sample, not the reset cell
		if sampled != nil {
			select {
			case <-sampled:
			case <-ctx.Done():
			}
		}

		engine := replay.NewEngine(c.engineOptions(s)...)
		res, err = engine.Run(ctx, s.Macro, c.cfg.Sink, state, c.recoveryFor(s))
	}()
	wg.Wait()

	c.endSession(s, res, err)
}

// recoveryFor marks the coordinator paused while the configured recovery runs
func (c *Coordinator) recoveryFor(s *Session) replay.RecoveryAction {
	return replay.RecoveryFunc(func(ctx context.Context, gs monitor.GameState) error {
		c.mu.Lock()
		c.state = ReplayingPaused
		c.mu.Unlock()

		c.publish(events.NewSessionPausedEvent(s.ID, gs.String()))
		if c.cfg.Recovery == nil {
			return nil
		}
		return c.cfg.Recovery.Recover(ctx, gs)
	})
}

func (c *Coordinator) endSession(s *Session, res replay.Result, err error) {
	ended := c.cfg.Now()
	s.finish(res, err)

	if c.cfg.Sessions != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		if rerr := c.cfg.Sessions.EndSession(s.ID, res.Outcome.String(), res.Dispatched, ended, errMsg); rerr != nil {
			c.logger.WarnWithContext("failed to record session end", map[string]interface{}{"error": rerr.Error()})
		}
	}

	fields := map[string]interface{}{
		"session":    s.ID,
		"outcome":    res.Outcome.String(),
		"dispatched": res.Dispatched,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	}
	if err != nil {
		c.logger.ErrorWithContext("replay session aborted", err, fields)
	} else {
		c.logger.InfoWithContext("replay session ended", fields)
	}
	c.publish(events.NewSessionEndedEvent(s.ID, res.Outcome.String(), res.Dispatched, res.Elapsed, err))

	c.mu.Lock()
	c.state = Idle
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()

	close(s.done)
}

func (c *Coordinator) engineOptions(s *Session) []replay.EngineOption {
	opts := append([]replay.EngineOption{}, c.cfg.EngineOptions...)
	return append(opts, replay.WithActionHook(func(i int, a macro.Action) {
		s.advance(i + 1)
		c.publish(events.NewActionReplayedEvent(s.ID, i, a.X, a.Y))
	}))
}

func (c *Coordinator) monitorOptions() []monitor.Option {
	opts := append([]monitor.Option{}, c.cfg.MonitorOptions...)
	if c.cfg.Events != nil {
		opts = append(opts, monitor.WithEvents(c.cfg.Events))
	}
	return opts
}

func (c *Coordinator) publish(e events.Event) {
	if c.cfg.Events != nil {
		c.cfg.Events.Publish(e)
	}
}
