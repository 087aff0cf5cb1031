package main

import (
	"context"
	"fmt"

	"jordanella.com/slash-go/internal/adb"
	"jordanella.com/slash-go/internal/browser"
	"jordanella.com/slash-go/internal/classifier"
	"jordanella.com/slash-go/internal/config"
	"jordanella.com/slash-go/internal/coordinator"
	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/database"
	"jordanella.com/slash-go/internal/desktop"
	"jordanella.com/slash-go/internal/events"
	"jordanella.com/slash-go/internal/logging"
	"jordanella.com/slash-go/internal/monitor"
	"jordanella.com/slash-go/internal/replay"
)

// device is a capture backend that also accepts taps
type device interface {
	cv.Capturer
	replay.Dispatcher
}

// app holds the process-wide collaborators a command needs
type app struct {
	cfg      *config.Config
	db       *database.DB
	bus      *events.DefaultEventBus
	reporter *logging.ErrorReporter
	eventLog *logging.EventLogger
	logger   *logging.Logger

	closers []func()
}

// openApp opens the database and event plumbing described by settings
func openApp() (*app, error) {
	a := &app{
		cfg:      settings,
		bus:      events.NewEventBus(256),
		reporter: logging.NewErrorReporter(200),
		logger:   logging.NewLogger("CLI"),
	}
	a.closers = append(a.closers, a.bus.Stop)

	db, err := database.Open(a.cfg.Storage.DBPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := db.RunMigrations(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.reporter.OnError(db.LogReport)

	if dir := a.cfg.Logging.EventLogDir; dir != "" {
		el, err := logging.NewEventLogger(a.bus, dir)
		if err != nil {
			a.logger.WarnWithContext("event log disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.eventLog = el
			a.closers = append(a.closers, func() { _ = el.Close() })
		}
	}
	return a, nil
}

// close releases everything in reverse order of acquisition
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// connect opens the configured capture/input backend
func (a *app) connect(ctx context.Context) (device, error) {
	c := a.cfg.Capture
	switch c.Backend {
	case cv.CaptureBackendADB:
		ctrl, err := adb.ConnectADB(ctx, c.ADBPath, c.ADBPort)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = ctrl.Disconnect(context.Background()) })
		a.logger.InfoWithContext("connected", map[string]interface{}{"backend": "adb", "device": ctrl.Device()})
		return ctrl, nil

	case cv.CaptureBackendBrowser:
		b := browser.New(browser.Config{URL: c.BrowserURL, Headless: c.BrowserHeadless})
		if err := b.Start(ctx); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b.Close)
		a.logger.InfoWithContext("connected", map[string]interface{}{"backend": "browser", "url": c.BrowserURL})
		return b, nil

	case cv.CaptureBackendDesktop:
		s, err := desktop.Open(c.Display)
		if err != nil {
			return nil, err
		}
		a.logger.InfoWithContext("connected", map[string]interface{}{"backend": "desktop", "display": c.Display})
		return s, nil
	}
	return nil, fmt.Errorf("unknown capture backend %q", c.Backend)
}

// frameSource fronts a device with the frame cache and title-bar crop
func (a *app) frameSource(dev device) *cv.Service {
	return cv.NewService(dev, a.cfg.CaptureConfig())
}

// models builds the classifier set and loads whatever model files exist.
// Missing models are logged; their adapters stay unloaded.
func (a *app) models() *classifier.Set {
	set := classifier.NewSet(a.cfg.ModelSpecs())
	if err := set.LoadRunner(a.cfg.Models.Dir, a.cfg.Models.Runner, a.cfg.ModelTimeout()); err != nil {
		a.logger.WarnWithContext("some models are unavailable", map[string]interface{}{
			"dir":   a.cfg.Models.Dir,
			"error": err.Error(),
		})
	}
	a.closers = append(a.closers, set.Unload)
	return set
}

// staminaClassifier is the stamina model, backed by the colour heuristic
// when configured and the model is not loaded
func (a *app) staminaClassifier(set *classifier.Set) classifier.Classifier {
	if a.cfg.Monitor.Fallback == config.FallbackColor {
		return classifier.Fallback{Primary: set.Stamina, Secondary: classifier.ColorClassifier{}}
	}
	return set.Stamina
}

// coordinator wires a coordinator to dev. src and c may be nil when only
// unmonitored replay or recording is needed.
func (a *app) coordinator(dev replay.Dispatcher, src cv.FrameSource, c classifier.Classifier) *coordinator.Coordinator {
	cfg := coordinator.Config{
		Sink:       dev,
		Source:     src,
		Classifier: c,
		EngineOptions: []replay.EngineOption{
			replay.WithPollInterval(a.cfg.PollInterval()),
			replay.WithClickSpacing(a.cfg.Replay.ClickSpacing),
		},
		MonitorOptions: []monitor.Option{
			monitor.WithInterval(a.cfg.MonitorInterval()),
			monitor.WithErrorReporter(a.reporter),
		},
		Events:   a.bus,
		Sessions: a.db,
	}
	if a.cfg.Replay.RecoveryEnabled && dev != nil {
		cfg.Recovery = replay.TapRecovery{
			Sink:  dev,
			X:     a.cfg.Replay.RecoveryX,
			Y:     a.cfg.Replay.RecoveryY,
			Label: a.cfg.Replay.RecoveryLabel,
		}
	}
	return coordinator.New(cfg)
}

// replayStack connects the backend and builds a coordinator able to run
// monitored replays
func (a *app) replayStack(ctx context.Context) (*coordinator.Coordinator, error) {
	dev, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	set := a.models()
	return a.coordinator(dev, a.frameSource(dev), a.staminaClassifier(set)), nil
}
