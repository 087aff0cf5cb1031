package coordinator

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jordanella.com/slash-go/internal/classifier"
	"jordanella.com/slash-go/internal/events"
	"jordanella.com/slash-go/internal/macro"
	"jordanella.com/slash-go/internal/monitor"
)

type fakeSink struct {
	mu    sync.Mutex
	taps  int
	err   error
	onTap func()
}

func (f *fakeSink) Tap(ctx context.Context, x, y float64) error {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return f.err
	}
	f.taps++
	hook := f.onTap
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taps
}

type staticSource struct{}

func (staticSource) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), nil
}

type labelClassifier string

func (l labelClassifier) Classify(ctx context.Context, img *image.RGBA) (classifier.Result, error) {
	return classifier.Result{Label: string(l)}, nil
}

type eventLog struct {
	mu    sync.Mutex
	types []events.EventType
}

func (e *eventLog) Publish(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, ev.Type)
}

func (e *eventLog) has(t events.EventType) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, got := range e.types {
		if got == t {
			return true
		}
	}
	return false
}

type sessionRow struct {
	macro      string
	monitored  bool
	outcome    string
	dispatched int
	errMsg     string
	ended      bool
}

type fakeSessions struct {
	mu   sync.Mutex
	rows map[string]*sessionRow
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]*sessionRow{}}
}

func (f *fakeSessions) StartSession(id, macroName string, monitored bool, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id] = &sessionRow{macro: macroName, monitored: monitored}
	return nil
}

func (f *fakeSessions) EndSession(id, outcome string, dispatched int, endedAt time.Time, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return errors.New("unknown session")
	}
	row.outcome, row.dispatched, row.errMsg, row.ended = outcome, dispatched, errMsg, true
	return nil
}

func (f *fakeSessions) get(id string) sessionRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func testMacro(offsets ...int64) *macro.Macro {
	m := macro.New("farm")
	for i, off := range offsets {
		m.Actions = append(m.Actions, macro.Action{X: float64(i), Y: float64(i), Timestamp: 1000 + off})
	}
	m.MonitorRegion = macro.Region{X: 0, Y: 0, Width: 8, Height: 8}
	return m
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestRecordingLifecycle(t *testing.T) {
	var clock atomic.Int64
	clock.Store(5000)
	c := New(Config{Sink: &fakeSink{}, Now: func() time.Time {
		return time.UnixMilli(clock.Add(100))
	}})

	assert.False(t, c.Record(1, 1), "idle coordinator must ignore taps")

	require.NoError(t, c.StartRecording())
	assert.Equal(t, Recording, c.State())
	assert.ErrorIs(t, c.StartRecording(), ErrNotIdle)

	assert.True(t, c.Record(10, 20))
	assert.True(t, c.Record(30, 40))

	actions := c.StopRecording()
	require.Len(t, actions, 2)
	assert.Equal(t, int64(5200), actions[0].Timestamp)
	assert.Equal(t, int64(5300), actions[1].Timestamp)
	assert.Equal(t, Idle, c.State())

	assert.Len(t, c.StopRecording(), 2, "second stop is a no-op")
	assert.Equal(t, Idle, c.State())
}

func TestStartReplayPreconditions(t *testing.T) {
	c := New(Config{Sink: &fakeSink{}})

	_, err := c.StartReplay(context.Background(), macro.New("empty"), ReplayOptions{})
	assert.ErrorIs(t, err, macro.ErrEmptyMacro)

	m := testMacro(0)
	m.MonitorRegion = macro.Region{}
	_, err = c.StartReplay(context.Background(), m, ReplayOptions{Monitored: true})
	assert.ErrorIs(t, err, macro.ErrMissingMonitorRegion)

	_, err = c.StartReplay(context.Background(), testMacro(0), ReplayOptions{Monitored: true})
	assert.ErrorIs(t, err, ErrNoFrameSource)

	require.NoError(t, c.StartRecording())
	_, err = c.StartReplay(context.Background(), testMacro(0), ReplayOptions{})
	assert.ErrorIs(t, err, ErrNotIdle)
	assert.Equal(t, Recording, c.State())
}

func TestReplayFinishes(t *testing.T) {
	sink := &fakeSink{}
	sessions := newFakeSessions()
	log := &eventLog{}
	c := New(Config{Sink: sink, Sessions: sessions, Events: log})

	s, err := c.StartReplay(context.Background(), testMacro(0, 10, 20), ReplayOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	_, err = c.StartReplay(context.Background(), testMacro(0), ReplayOptions{})
	assert.ErrorIs(t, err, ErrNotIdle)
	assert.ErrorIs(t, c.StartRecording(), ErrNotIdle)

	c.Wait()
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "FINISHED", res.Outcome.String())
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 3, s.Cursor())
	assert.False(t, s.Active())
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Session())

	row := sessions.get(s.ID)
	assert.True(t, row.ended)
	assert.Equal(t, "farm", row.macro)
	assert.Equal(t, "FINISHED", row.outcome)
	assert.Equal(t, 3, row.dispatched)

	assert.True(t, log.has(events.EventTypeSessionStarted))
	assert.True(t, log.has(events.EventTypeActionReplayed))
	assert.True(t, log.has(events.EventTypeSessionEnded))
}

func TestReplayCancel(t *testing.T) {
	sink := &fakeSink{}
	c := New(Config{Sink: sink})
	sink.onTap = c.Cancel

	start := time.Now()
	s, err := c.StartReplay(context.Background(), testMacro(0, 60_000), ReplayOptions{})
	require.NoError(t, err)
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", res.Outcome.String())
	assert.Equal(t, 1, sink.count())
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, Idle, c.State())
}

func TestReplayParentContextCancels(t *testing.T) {
	c := New(Config{Sink: &fakeSink{}})
	ctx, cancel := context.WithCancel(context.Background())

	s, err := c.StartReplay(ctx, testMacro(0, 60_000), ReplayOptions{})
	require.NoError(t, err)
	cancel()
	waitDone(t, s)

	res, _ := s.Result()
	assert.Equal(t, "CANCELLED", res.Outcome.String())
}

type stateProbe struct {
	c      *Coordinator
	calls  atomic.Int32
	during atomic.Int32
}

func (p *stateProbe) Recover(ctx context.Context, gs monitor.GameState) error {
	p.calls.Add(1)
	p.during.Store(int32(p.c.State()))
	return nil
}

func TestMonitoredReplayPausesOnLowStamina(t *testing.T) {
	sink := &fakeSink{}
	log := &eventLog{}
	sessions := newFakeSessions()
	probe := &stateProbe{}
	c := New(Config{
		Sink:           sink,
		Source:         staticSource{},
		Classifier:     labelClassifier("EMPTY"),
		Recovery:       probe,
		Events:         log,
		Sessions:       sessions,
		MonitorOptions: []monitor.Option{monitor.WithInterval(5 * time.Millisecond)},
	})
	probe.c = c

	s, err := c.StartReplay(context.Background(), testMacro(0, 300, 400), ReplayOptions{Monitored: true})
	require.NoError(t, err)
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, "PAUSED_BY_STATE", res.Outcome.String())
	assert.Equal(t, monitor.StaminaEmpty, res.State)
	assert.Zero(t, res.Dispatched)
	assert.Zero(t, sink.count())
	assert.Equal(t, int32(1), probe.calls.Load())
	assert.Equal(t, int32(ReplayingPaused), probe.during.Load())
	assert.Equal(t, Idle, c.State())

	assert.True(t, log.has(events.EventTypeSessionPaused))
	assert.True(t, log.has(events.EventTypeStateChanged))
	assert.Equal(t, "PAUSED_BY_STATE", sessions.get(s.ID).outcome)
}

func TestMonitoredReplayFinishesWhenStaminaFull(t *testing.T) {
	sink := &fakeSink{}
	c := New(Config{
		Sink:           sink,
		Source:         staticSource{},
		Classifier:     labelClassifier("FULL"),
		MonitorOptions: []monitor.Option{monitor.WithInterval(5 * time.Millisecond)},
	})

	s, err := c.StartReplay(context.Background(), testMacro(0, 20, 40), ReplayOptions{Monitored: true})
	require.NoError(t, err)
	waitDone(t, s)

	res, _ := s.Result()
	assert.Equal(t, "FINISHED", res.Outcome.String())
	assert.Equal(t, 3, sink.count())
}

func TestReplayAbortsOnSinkError(t *testing.T) {
	sink := &fakeSink{err: errors.New("adb: device not found")}
	sessions := newFakeSessions()
	c := New(Config{Sink: sink, Sessions: sessions})

	s, err := c.StartReplay(context.Background(), testMacro(0, 10), ReplayOptions{})
	require.NoError(t, err)
	waitDone(t, s)

	res, err := s.Result()
	assert.Error(t, err)
	assert.Equal(t, "ABORTED", res.Outcome.String())
	assert.Contains(t, sessions.get(s.ID).errMsg, "device not found")
	assert.Equal(t, Idle, c.State())
}

func TestReplayUsesACopyOfTheMacro(t *testing.T) {
	c := New(Config{Sink: &fakeSink{}})
	m := testMacro(0, 60_000)

	s, err := c.StartReplay(context.Background(), m, ReplayOptions{})
	require.NoError(t, err)
	m.Actions = nil
	assert.Len(t, s.Macro.Actions, 2)

	c.Cancel()
	c.Wait()
	assert.Equal(t, Idle, c.State())
}

type slowSource struct {
	delay time.Duration
}

func (s slowSource) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.RGBA, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), nil
}

func TestMonitoredReplayWaitsForFirstSample(t *testing.T) {
	for i := 0; i < 3; i++ {
		sink := &fakeSink{}
		c := New(Config{
			Sink:           sink,
			Source:         slowSource{delay: 30 * time.Millisecond},
			Classifier:     labelClassifier("EMPTY"),
			MonitorOptions: []monitor.Option{monitor.WithInterval(5 * time.Millisecond)},
		})

		s, err := c.StartReplay(context.Background(), testMacro(0, 300, 400), ReplayOptions{Monitored: true})
		require.NoError(t, err)
		waitDone(t, s)

		res, _ := s.Result()
		assert.Equal(t, "PAUSED_BY_STATE", res.Outcome.String())
		assert.Zero(t, res.Dispatched)
		assert.Zero(t, sink.count())
	}
}

func TestCancelWhileAwaitingFirstSample(t *testing.T) {
	sink := &fakeSink{}
	c := New(Config{
		Sink:       sink,
		Source:     slowSource{delay: time.Hour},
		Classifier: labelClassifier("FULL"),
	})

	s, err := c.StartReplay(context.Background(), testMacro(0), ReplayOptions{Monitored: true})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	c.Cancel()
	waitDone(t, s)

	res, _ := s.Result()
	assert.Equal(t, "CANCELLED", res.Outcome.String())
	assert.Zero(t, sink.count())
	assert.Equal(t, Idle, c.State())
}
