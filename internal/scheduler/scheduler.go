// Package scheduler starts macro replays on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"jordanella.com/slash-go/internal/config"
	"jordanella.com/slash-go/internal/coordinator"
	"jordanella.com/slash-go/internal/events"
	"jordanella.com/slash-go/internal/logging"
	"jordanella.com/slash-go/internal/macro"
)

// Replayer starts a replay session; *coordinator.Coordinator satisfies it
type Replayer interface {
	StartReplay(ctx context.Context, m *macro.Macro, opts coordinator.ReplayOptions) (*coordinator.Session, error)
}

// MacroSource resolves a macro by name; *database.DB satisfies it
type MacroSource interface {
	GetMacro(name string) (*macro.Macro, error)
}

// EntryStatus describes a registered entry
type EntryStatus struct {
	config.ScheduleEntry
	Next       time.Time
	LastRun    time.Time
	LastResult string
}

type entry struct {
	cfg        config.ScheduleEntry
	id         rcron.EntryID
	lastRun    time.Time
	lastResult string
}

// Scheduler fires replays through a Replayer. A tick that finds the
// coordinator busy is skipped, never queued.
type Scheduler struct {
	replayer Replayer
	macros   MacroSource
	events   events.Publisher
	logger   *logging.Logger

	cron    *rcron.Cron
	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler. pub may be nil.
func New(replayer Replayer, macros MacroSource, pub events.Publisher) *Scheduler {
	logger := logging.NewLogger("Scheduler")
	return &Scheduler{
		replayer: replayer,
		macros:   macros,
		events:   pub,
		logger:   logger,
		cron: rcron.New(
			rcron.WithSeconds(),
			rcron.WithLogger(cronLogger{logger}),
			rcron.WithChain(rcron.Recover(cronLogger{logger})),
		),
		entries: make(map[string]*entry),
		ctx:     context.Background(),
	}
}

// Add registers an entry. Disabled entries are ignored.
func (s *Scheduler) Add(e config.ScheduleEntry) error {
	if !e.Enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.Name]; exists {
		return fmt.Errorf("schedule entry %q already registered", e.Name)
	}
	name := e.Name
	id, err := s.cron.AddFunc(e.Spec, func() { s.Trigger(name) })
	if err != nil {
		return fmt.Errorf("schedule entry %q: invalid spec %q: %w", e.Name, e.Spec, err)
	}
	s.entries[name] = &entry{cfg: e, id: id}
	s.logger.InfoWithContext("schedule entry registered", map[string]interface{}{
		"entry": e.Name,
		"spec":  e.Spec,
		"macro": e.Macro,
	})
	return nil
}

// Remove unregisters an entry
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return true
}

// Replace swaps the registered entries for a new set, typically after a
// settings reload. Invalid entries are reported together.
func (s *Scheduler) Replace(entries []config.ScheduleEntry) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.Remove(name)
	}
	var errs []error
	for _, e := range entries {
		if err := s.Add(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start begins firing entries. Sessions started by the scheduler use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoWithContext("scheduler started", map[string]interface{}{"entries": len(s.Entries())})
}

// Stop halts the cron loop and waits up to five seconds for a running trigger
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("stop timed out waiting for a running trigger")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

// Entries lists the registered entries with their next fire time
func (s *Scheduler) Entries() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, EntryStatus{
			ScheduleEntry: e.cfg,
			Next:          s.cron.Entry(e.id).Next,
			LastRun:       e.lastRun,
			LastResult:    e.lastResult,
		})
	}
	return out
}

// Trigger fires an entry immediately. It returns the started session, or
// nil with the reason the tick was skipped.
func (s *Scheduler) Trigger(name string) (*coordinator.Session, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	ctx := s.ctx
	var cfg config.ScheduleEntry
	if ok {
		cfg = e.cfg
		e.lastRun = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("schedule entry %q not registered", name)
	}

	session, err := s.fire(ctx, cfg)
	result := "started"
	if err != nil {
		result = err.Error()
	}

	s.mu.Lock()
	if cur, still := s.entries[name]; still {
		cur.lastResult = result
	}
	s.mu.Unlock()
	return session, err
}

func (s *Scheduler) fire(ctx context.Context, e config.ScheduleEntry) (*coordinator.Session, error) {
	fields := map[string]interface{}{"entry": e.Name, "macro": e.Macro}

	m, err := s.macros.GetMacro(e.Macro)
	if err != nil {
		s.logger.ErrorWithContext("scheduled macro unavailable", err, fields)
		s.publish(events.NewScheduleEvent(events.EventTypeScheduleSkipped, e.Name, e.Macro, err.Error()))
		return nil, err
	}

	session, err := s.replayer.StartReplay(ctx, m, coordinator.ReplayOptions{Monitored: e.Monitored})
	if err != nil {
		if errors.Is(err, coordinator.ErrNotIdle) {
			s.logger.InfoWithContext("coordinator busy, skipping scheduled replay", fields)
		} else {
			s.logger.ErrorWithContext("scheduled replay failed to start", err, fields)
		}
		s.publish(events.NewScheduleEvent(events.EventTypeScheduleSkipped, e.Name, e.Macro, err.Error()))
		return nil, err
	}

	fields["session"] = session.ID
	s.logger.InfoWithContext("scheduled replay started", fields)
	s.publish(events.NewScheduleEvent(events.EventTypeScheduleFired, e.Name, e.Macro, ""))
	return session, nil
}

func (s *Scheduler) publish(e events.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

// cronLogger routes cron's own logging into the component logger
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.DebugWithContext("cron: "+msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.ErrorWithContext("cron: "+msg, err, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
