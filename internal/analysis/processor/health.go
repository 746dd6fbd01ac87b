package processor

import (
	"sync"
	"time"
)

// Health is a snapshot of ingestion progress.
type Health struct {
	FirstWindow time.Time `json:"first_window"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at"`
	Processed   uint64    `json:"processed"`
	Failed      uint64    `json:"failed"`
	Dropped     uint64    `json:"dropped"`
	Stored      uint64    `json:"stored"`
}

// Stale reports whether no window has succeeded for more than three
// window lengths. Before the first window ingestion is not stale.
func (h Health) Stale(now time.Time, window time.Duration) bool {
	if h.FirstWindow.IsZero() {
		return false
	}
	ref := h.FirstWindow
	if h.LastSuccess.After(ref) {
		ref = h.LastSuccess
	}
	return now.Sub(ref) > 3*window
}

type healthState struct {
	mu sync.RWMutex
	h  Health
}

func (s *healthState) started(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h.FirstWindow.IsZero() {
		s.h.FirstWindow = at
	}
}

func (s *healthState) succeeded(at time.Time, stored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.Processed++
	s.h.Stored += uint64(stored)
	s.h.LastSuccess = at
}

// failed records a failed window. stored counts records the window still
// appended before or after the failure.
func (s *healthState) failed(at time.Time, err error, stored int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.Failed++
	s.h.Stored += uint64(stored)
	s.h.LastError = err.Error()
	s.h.LastErrorAt = at
}

func (s *healthState) snapshot() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}
