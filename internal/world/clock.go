package world

import (
	"sync"
	"time"
)

// Clock reports elapsed seconds since an arbitrary epoch.
type Clock interface {
	Now() float64
}

// SystemClock measures wall time since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a wall clock at zero.
func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

func (c *SystemClock) Now() float64 { return time.Since(c.start).Seconds() }

// ManualClock only moves when told to. Tests use it to make timed nodes
// deterministic.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by seconds.
func (c *ManualClock) Advance(seconds float64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

// Set moves the clock to an absolute time.
func (c *ManualClock) Set(seconds float64) {
	c.mu.Lock()
	c.now = seconds
	c.mu.Unlock()
}
