package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"jordanella.com/slash-go/internal/events"
)

func TestErrorReporterHistoryIsBounded(t *testing.T) {
	SetOutput(io.Discard)
	defer SetOutput(os.Stderr)

	er := NewErrorReporter(2)
	var seen []string
	er.OnError(func(r *ErrorReport) { seen = append(seen, r.Message) })

	er.Report(ErrorCategoryCapture, ErrorSeverityLow, "Monitor", "first", errors.New("a"), nil)
	er.Report(ErrorCategoryCapture, ErrorSeverityMedium, "Monitor", "second", errors.New("b"), nil)
	er.Report(ErrorCategoryReplay, ErrorSeverityHigh, "Replay", "third", errors.New("c"), map[string]interface{}{"index": 3})

	if len(seen) != 3 {
		t.Errorf("callback saw %d reports, want 3", len(seen))
	}

	recent := er.GetRecentErrors(10)
	if len(recent) != 2 {
		t.Fatalf("history holds %d reports, want 2", len(recent))
	}
	if recent[0].Message != "second" || recent[1].Message != "third" {
		t.Errorf("history = %q, %q", recent[0].Message, recent[1].Message)
	}

	stats := er.GetErrorStats()
	if stats[ErrorCategoryCapture] != 1 || stats[ErrorCategoryReplay] != 1 {
		t.Errorf("stats = %v", stats)
	}

	er.Clear()
	if n := len(er.GetRecentErrors(10)); n != 0 {
		t.Errorf("after Clear history holds %d", n)
	}
}

func TestLoggerAddsComponentField(t *testing.T) {
	if _, ok := os.LookupEnv("LOG_FORMAT"); ok {
		t.Skip("LOG_FORMAT overrides the format under test")
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	Init("info", "json")
	defer Init("info", "text")

	NewLogger("Replay").InfoWithContext("dispatched", map[string]interface{}{"index": 2})
	NewLogger("Replay").Debug("hidden at info level")

	out := buf.String()
	if !strings.Contains(out, `"component":"Replay"`) || !strings.Contains(out, `"index":2`) {
		t.Errorf("log line %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	if _, ok := os.LookupEnv("LOG_LEVEL"); ok {
		t.Skip("LOG_LEVEL overrides the level under test")
	}
	Init("nonsense", "text")
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info", logrus.GetLevel())
	}
}

func TestEventLoggerWritesEvents(t *testing.T) {
	SetOutput(io.Discard)
	defer SetOutput(os.Stderr)

	bus := events.NewEventBus(10)
	el, err := NewEventLogger(bus, t.TempDir())
	if err != nil {
		t.Fatalf("NewEventLogger: %v", err)
	}

	bus.Publish(events.NewSessionStartedEvent("s-1", "farm", 4, true))
	bus.Publish(events.NewErrorEvent("monitor", "capture failed", errors.New("boom")))
	bus.Stop()

	if err := el.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(el.Path())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"session.started", "farm", "capture failed"} {
		if !strings.Contains(text, want) {
			t.Errorf("event log missing %q:\n%s", want, text)
		}
	}
}
