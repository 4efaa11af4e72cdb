// Package clock provides wall-clock sources in integer unix seconds.
package clock

import (
	"sync"
	"time"
)

// System reads the host wall clock
type System struct{}

// Now returns the current unix time in seconds
func (System) Now() int64 {
	return time.Now().Unix()
}

// Manual is a settable clock for tests and one-shot tools
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual creates a manual clock starting at now
func NewManual(now int64) *Manual {
	return &Manual{now: now}
}

// Now returns the current manual time
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to now
func (m *Manual) Set(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Advance moves the clock forward by seconds
func (m *Manual) Advance(seconds int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
}
