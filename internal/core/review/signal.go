package review

import (
	"context"
	"sync"
	"time"
)

// Result is the terminal payload handed to waiters when a session completes.
type Result struct {
	Status     Status    `json:"status"`
	Feedback   string    `json:"feedback"`
	Comments   []Comment `json:"comments"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Signal is a one-shot, two-outcome completion primitive. Exactly one of
// Resolve or Reject takes effect; later calls to either are no-ops. Any
// number of waiters may call Wait and all observe the same stored outcome,
// including waiters that arrive after the signal has fired.
type Signal struct {
	mu     sync.Mutex
	done   chan struct{}
	result Result
	err    error
}

// NewSignal creates an unresolved signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Resolve stores the result and releases all waiters. Returns false if the
// signal had already fired.
func (s *Signal) Resolve(res Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fired() {
		return false
	}
	s.result = res
	close(s.done)
	return true
}

// Reject stores the error outcome and releases all waiters. Returns false if
// the signal had already fired. Rejecting twice is harmless.
func (s *Signal) Reject(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fired() {
		return false
	}
	s.err = err
	close(s.done)
	return true
}

// Wait blocks until the signal fires or ctx is done. If the signal has
// already fired, the stored outcome is returned immediately.
func (s *Signal) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.outcome()
	default:
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.done:
		return s.outcome()
	}
}

// Outcome returns the stored outcome without blocking. The bool reports
// whether the signal has fired.
func (s *Signal) Outcome() (Result, error, bool) {
	select {
	case <-s.done:
		res, err := s.outcome()
		return res, err, true
	default:
		return Result{}, nil, false
	}
}

func (s *Signal) outcome() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// fired reports whether done is closed. Caller must hold mu.
func (s *Signal) fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
