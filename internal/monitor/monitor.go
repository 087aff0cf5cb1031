// Package monitor samples a screen region on a fixed interval, classifies it
// and publishes the resulting GameState to a shared cell.
package monitor

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"jordanella.com/slash-go/internal/classifier"
	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/events"
	"jordanella.com/slash-go/internal/logging"
)

// DefaultInterval is the sampling period
const DefaultInterval = 500 * time.Millisecond

// LabelMapper turns a classification label into a state to publish
type LabelMapper func(label string) (GameState, bool)

// Stats counts what the monitor did over its lifetime
type Stats struct {
	Ticks           int64
	Published       int64
	CaptureFailures int64
	Unclassified    int64
}

// Monitor is the producer side of the state cell
type Monitor struct {
	source     cv.FrameSource
	classifier classifier.Classifier
	cell       *StateCell
	interval   time.Duration
	mapLabel   LabelMapper

	logger   *logging.Logger
	reporter *logging.ErrorReporter
	bus      events.Publisher

	ready     chan struct{}
	readyOnce sync.Once

	ticks           atomic.Int64
	published       atomic.Int64
	captureFailures atomic.Int64
	unclassified    atomic.Int64
}

// Option configures a Monitor
type Option func(*Monitor)

// WithInterval overrides DefaultInterval
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLabelMapper overrides StateForLabel
func WithLabelMapper(fn LabelMapper) Option {
	return func(m *Monitor) { m.mapLabel = fn }
}

// WithErrorReporter records skipped ticks
func WithErrorReporter(r *logging.ErrorReporter) Option {
	return func(m *Monitor) { m.reporter = r }
}

// WithEvents publishes state.changed events
func WithEvents(p events.Publisher) Option {
	return func(m *Monitor) { m.bus = p }
}

// New creates a monitor writing to cell
func New(source cv.FrameSource, c classifier.Classifier, cell *StateCell, opts ...Option) *Monitor {
	m := &Monitor{
		source:     source,
		classifier: c,
		cell:       cell,
		interval:   DefaultInterval,
		mapLabel:   StateForLabel,
		logger:     logging.NewLogger("Monitor"),
		ready:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the sampling period
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Ready is closed once Run has finished its first tick, whether or not that
// tick published a state, or once Run returns.
func (m *Monitor) Ready() <-chan struct{} {
	return m.ready
}

func (m *Monitor) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// Stats returns a snapshot of the counters
func (m *Monitor) Stats() Stats {
	return Stats{
		Ticks:           m.ticks.Load(),
		Published:       m.published.Load(),
		CaptureFailures: m.captureFailures.Load(),
		Unclassified:    m.unclassified.Load(),
	}
}

// Run samples region once immediately and then every interval until ctx is
// done. Capture and classification failures skip the tick without publishing.
func (m *Monitor) Run(ctx context.Context, region image.Rectangle) {
	m.logger.InfoWithContext("monitor started", map[string]interface{}{
		"region":      region.String(),
		"interval_ms": m.interval.Milliseconds(),
	})
	defer m.logger.Debug("monitor stopped")
	defer m.markReady()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.tick(ctx, region)
		m.markReady()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) tick(ctx context.Context, region image.Rectangle) {
	if ctx.Err() != nil {
		return
	}
	m.ticks.Add(1)

	state, ok, err := m.Sample(ctx, region)
	if err != nil || !ok {
		return
	}

	prev := m.cell.Store(state)
	m.published.Add(1)
	if prev != state {
		m.logger.InfoWithContext("game state changed", map[string]interface{}{
			"from": prev.String(),
			"to":   state.String(),
		})
		if m.bus != nil {
			m.bus.Publish(events.NewStateChangedEvent(prev.String(), state.String()))
		}
	}
}

// Sample captures and classifies region once without publishing. ok is false
// when the result maps to no state.
func (m *Monitor) Sample(ctx context.Context, region image.Rectangle) (GameState, bool, error) {
	img, err := m.source.CaptureRegion(ctx, region)
	if err != nil {
		if ctx.Err() == nil {
			m.captureFailures.Add(1)
			m.report(logging.ErrorCategoryCapture, "capture failed, skipping tick", err)
		}
		return Idle, false, err
	}

	res, err := m.classifier.Classify(ctx, img)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return Idle, false, err
	case errors.Is(err, classifier.ErrModelUnavailable):
		m.unclassified.Add(1)
		m.logger.Debug("no model loaded, skipping tick")
		return Idle, false, err
	default:
		m.unclassified.Add(1)
		m.report(logging.ErrorCategoryClassifier, "classification failed, skipping tick", err)
		return Idle, false, err
	}

	state, ok := m.mapLabel(res.Label)
	if !ok {
		m.unclassified.Add(1)
	}
	return state, ok, nil
}

func (m *Monitor) report(category logging.ErrorCategory, message string, err error) {
	if m.reporter != nil {
		m.reporter.Report(category, logging.ErrorSeverityLow, "Monitor", message, err, nil)
		return
	}
	m.logger.DebugWithContext(message, map[string]interface{}{"error": err.Error()})
}
