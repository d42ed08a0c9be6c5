package ratelimiter

import (
	"context"
	"math"
	"sync"
	"time"
)

// maxInterval bounds the spacing derived from vanishingly small rates.
const maxInterval = time.Duration(math.MaxInt64 / 4)

// pacerConfig overrides pacer timing for tests.
type pacerConfig struct {
	now      func() time.Time
	newTimer func(d time.Duration) (<-chan time.Time, func() bool)
}

// defaultPacerConfig returns the production pacer defaults.
func defaultPacerConfig() pacerConfig {
	return pacerConfig{
		now:      time.Now,
		newTimer: realTimer,
	}
}

// realTimer wraps time.NewTimer.
func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Pacer blocks callers until their next permitted emission time.
//
// Slots are reserved under a mutex so concurrent callers sharing one Pacer
// never receive overlapping slots; the wait itself happens outside the lock.
type Pacer struct {
	mu        sync.Mutex
	next      time.Time
	kind      ModeKind
	kindSet   bool
	modeSince time.Time

	now      func() time.Time
	newTimer func(d time.Duration) (<-chan time.Time, func() bool)
}

// NewPacer creates a Pacer with the default clock.
func NewPacer() *Pacer {
	return newPacer(defaultPacerConfig())
}

// newPacer builds a Pacer with custom configuration, primarily for tests.
func newPacer(cfg pacerConfig) *Pacer {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.newTimer == nil {
		cfg.newTimer = realTimer
	}
	return &Pacer{now: cfg.now, newTimer: cfg.newTimer}
}

// Await blocks until the next emission permitted by mode is due.
// It returns ctx.Err() if the context ends first; the reserved slot is
// still consumed in that case.
func (p *Pacer) Await(ctx context.Context, mode Mode) error {
	target, wait := p.reserve(modeOrPassThrough(mode))
	if !wait {
		return ctx.Err()
	}
	return p.waitUntil(ctx, target)
}

// reserve claims the next slot for mode and advances the schedule.
func (p *Pacer) reserve(mode Mode) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	kind := mode.Kind()
	if !p.kindSet || p.kind != kind {
		p.kind = kind
		p.kindSet = true
		p.next = now
		p.modeSince = now
	}

	rate := 0.0
	if kind != KindPassThrough {
		rate = mode.RateAt(now.Sub(p.modeSince))
	}
	if rate <= 0 {
		p.next = now
		return now, false
	}

	target := p.next
	if target.Before(now) {
		target = now
	}
	p.next = target.Add(intervalFor(rate))
	return target, true
}

// waitUntil sleeps until target, tolerating early wake-ups.
func (p *Pacer) waitUntil(ctx context.Context, target time.Time) error {
	for {
		remaining := target.Sub(p.now())
		if remaining <= 0 {
			return nil
		}
		fired, stop := p.newTimer(remaining)
		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case <-fired:
		}
	}
}

// intervalFor converts a positive rate into the spacing between emissions.
func intervalFor(rate float64) time.Duration {
	interval := float64(time.Second) / rate
	if interval >= float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(interval)
}
