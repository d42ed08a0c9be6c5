package ratelimiter

import (
	"math"
	"sync"
	"time"
)

// DefaultTick is the quota planning period.
const DefaultTick = time.Second

// QuotaPlanner converts a rate into whole invocations per fixed-length tick,
// carrying the fractional remainder forward so that fractional rates are
// honored exactly over time.
type QuotaPlanner struct {
	mu        sync.Mutex
	mode      Mode
	modeSince time.Time
	carry     float64
	enabled   bool
	tick      time.Duration
}

// NewQuotaPlanner creates an enabled planner for the given rate and tick length.
// A non-positive tick falls back to DefaultTick.
func NewQuotaPlanner(ratePerSec float64, tick time.Duration) *QuotaPlanner {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &QuotaPlanner{
		mode:    NewConstant(ratePerSec),
		enabled: true,
		tick:    tick,
	}
}

// SetRate switches the planner to a constant rate.
func (q *QuotaPlanner) SetRate(ratePerSec float64) {
	q.SetMode(NewConstant(ratePerSec))
}

// SetMode replaces the planner mode. A change of kind restarts the mode clock.
func (q *QuotaPlanner) SetMode(mode Mode) {
	mode = modeOrPassThrough(mode)
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.mode == nil || q.mode.Kind() != mode.Kind() {
		q.modeSince = time.Time{}
	}
	q.mode = mode
}

// SetEnabled toggles planning. Disabling discards the carry-over.
func (q *QuotaPlanner) SetEnabled(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enabled = enabled
	if !enabled {
		q.carry = 0
	}
}

// Enabled reports whether the planner is enabled.
func (q *QuotaPlanner) Enabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enabled
}

// CarryOver returns the current fractional remainder.
func (q *QuotaPlanner) CarryOver() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.carry
}

// PlanInvocations returns how many invocations to perform in the tick
// starting at now.
func (q *QuotaPlanner) PlanInvocations(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.enabled {
		q.carry = 0
		return 0
	}
	if q.modeSince.IsZero() {
		q.modeSince = now
	}
	mode := modeOrPassThrough(q.mode)
	rate := SanitizeRate(mode.RateAt(now.Sub(q.modeSince)))
	planned := rate*q.tick.Seconds() + q.carry
	quota := math.Floor(planned)
	q.carry = planned - quota
	if quota > math.MaxInt32 {
		quota = math.MaxInt32
	}
	return int(quota)
}
