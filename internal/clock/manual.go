package clock

import (
	"sync"
	"time"
)

// Manual is a hand-driven Clock. Time stands still until Advance moves it,
// at which point every timer whose deadline has been reached fires. Tests
// use Waiters to observe that a caller has parked on After before advancing.
type Manual struct {
	mu      sync.Mutex
	current time.Time
	armed   []armedTimer
}

type armedTimer struct {
	deadline time.Time
	signal   chan time.Time
}

// NewManual returns a Manual clock pinned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{current: start.UTC()}
}

// Now reports the manual clock's current instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// After arms a timer d from the current instant. Non-positive durations fire
// immediately without waiting for an Advance.
func (m *Manual) After(d time.Duration) <-chan time.Time {
	signal := make(chan time.Time, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if d <= 0 {
		signal <- m.current
		return signal
	}
	m.armed = append(m.armed, armedTimer{deadline: m.current.Add(d), signal: signal})
	return signal
}

// Advance moves the clock forward by d and fires every timer due at or
// before the new instant, in arming order. It returns the new instant.
func (m *Manual) Advance(d time.Duration) time.Time {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
	kept := m.armed[:0]
	for _, t := range m.armed {
		if t.deadline.After(m.current) {
			kept = append(kept, t)
			continue
		}
		t.signal <- m.current
	}
	m.armed = kept
	return m.current
}

// Waiters reports how many timers are armed and not yet fired.
func (m *Manual) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.armed)
}
