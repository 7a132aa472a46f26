package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock yields the current time as unix seconds.
type Clock interface {
	Now() uint64
}

// System reads the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a settable clock for tests and simulations. It never moves
// backwards.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual returns a manual clock starting at start.
func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to ts. Moving backwards is rejected.
func (m *Manual) Set(ts uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts < m.now {
		return fmt.Errorf("clock: cannot move from %d back to %d", m.now, ts)
	}
	m.now = ts
	return nil
}

// Advance moves the clock forward by d, truncated to whole seconds.
func (m *Manual) Advance(d time.Duration) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now += uint64(d / time.Second)
	}
	return m.now
}
