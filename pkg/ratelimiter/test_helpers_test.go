package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"swarmguard/internal/testutil"
)

// runWithTimeout fails the test if fn does not complete within timeout.
func runWithTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	ctx := testutil.Context(t, timeout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-ctx.Done():
		t.Fatalf("test timed out")
	case <-done:
	}
}

// steppingClock is a fake clock whose timers fire by advancing the clock.
// early makes each timer advance only half of the requested duration,
// imitating an early wake-up.
type steppingClock struct {
	mu     sync.Mutex
	now    time.Time
	early  bool
	timers int
}

// Now returns the current fake time.
func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer advances the clock and returns an already fired channel.
func (c *steppingClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers++
	if c.early && d > time.Nanosecond {
		d = d / 2
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch, func() bool { return false }
}

// Timers returns how many timers were created.
func (c *steppingClock) Timers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers
}
