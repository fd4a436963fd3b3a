package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper stands in for a real timer. Sleep returns immediately
// (or with ctx.Err() when ctx is done) and records the requested duration.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

// NewRecordingSleeper creates an empty sleeper.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d. It matches the oracle's SleepFunc signature.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Waits returns every recorded duration in call order.
func (s *RecordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// Count returns how many times Sleep was called with d.
func (s *RecordingSleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.waits {
		if w == d {
			n++
		}
	}
	return n
}

// Reset forgets all recorded waits.
func (s *RecordingSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = nil
}
