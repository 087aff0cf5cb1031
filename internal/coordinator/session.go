package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"jordanella.com/slash-go/internal/macro"
	"jordanella.com/slash-go/internal/replay"
)

// Session is one replay run. It is created by StartReplay and ends on
// completion, cancellation, pause or a dispatch failure.
type Session struct {
	ID        string
	Macro     *macro.Macro
	StartTime time.Time
	Monitored bool

	cursor atomic.Int64
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result replay.Result
	err    error
}

// Cursor is the number of actions dispatched so far
func (s *Session) Cursor() int {
	return int(s.cursor.Load())
}

// Active reports whether the session is still running
func (s *Session) Active() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Done is closed when the session has ended and the coordinator is idle again
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the replay result. It is only meaningful after Done.
func (s *Session) Result() (replay.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *Session) advance(n int) {
	s.cursor.Store(int64(n))
}

func (s *Session) finish(res replay.Result, err error) {
	s.mu.Lock()
	s.result, s.err = res, err
	s.mu.Unlock()
}
