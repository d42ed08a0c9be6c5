package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// Limiter exposes both pacing contracts over one operating mode: a blocking
// Await for synchronous call sites and PlanInvocations for tick-driven
// producers. The mode may be replaced at any time by the control plane.
type Limiter struct {
	mu      sync.RWMutex
	mode    Mode
	pacer   *Pacer
	planner *QuotaPlanner
}

// New creates a Limiter in the given mode with the default planning tick.
func New(mode Mode) *Limiter {
	return NewWithTick(mode, DefaultTick)
}

// NewWithTick creates a Limiter whose planner uses the given tick length.
func NewWithTick(mode Mode, tick time.Duration) *Limiter {
	mode = modeOrPassThrough(mode)
	planner := NewQuotaPlanner(0, tick)
	planner.SetMode(mode)
	return &Limiter{
		mode:    mode,
		pacer:   NewPacer(),
		planner: planner,
	}
}

// Mode returns the current operating mode.
func (l *Limiter) Mode() Mode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

// SetMode replaces the operating mode.
func (l *Limiter) SetMode(mode Mode) {
	mode = modeOrPassThrough(mode)
	l.mu.Lock()
	l.mode = mode
	l.mu.Unlock()
	l.planner.SetMode(mode)
}

// SetRate switches to a constant rate.
func (l *Limiter) SetRate(ratePerSec float64) {
	l.SetMode(NewConstant(ratePerSec))
}

// SetEnabled toggles tick planning.
func (l *Limiter) SetEnabled(enabled bool) {
	l.planner.SetEnabled(enabled)
}

// Await blocks until the next emission is due under the current mode.
func (l *Limiter) Await(ctx context.Context) error {
	return l.pacer.Await(ctx, l.Mode())
}

// PlanInvocations returns the quota for the tick starting at now.
func (l *Limiter) PlanInvocations(now time.Time) int {
	return l.planner.PlanInvocations(now)
}
