package macro

import (
	"sync"
	"time"
)

// Recorder is the action log. It accepts actions only between
// StartRecording and StopRecording.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	actions   []Action
}

// NewRecorder returns an idle recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// StartRecording clears the log and begins accepting actions
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = nil
	r.recording = true
}

// StopRecording stops accepting actions. Calling it while idle is a no-op.
func (r *Recorder) StopRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
}

// Recording reports whether actions are being accepted
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Record appends an action if recording and reports whether it was kept
func (r *Recorder) Record(x, y float64, nowMs int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false
	}
	r.actions = append(r.actions, Action{X: x, Y: y, Timestamp: nowMs})
	return true
}

// RecordNow records at the current wall-clock time
func (r *Recorder) RecordNow(x, y float64) bool {
	return r.Record(x, y, time.Now().UnixMilli())
}

// Snapshot returns a copy of the log; later mutations do not affect it
func (r *Recorder) Snapshot() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// Len returns the number of recorded actions
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}
