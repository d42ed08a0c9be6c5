package testutil

import (
	"sync"
	"time"
)

// ManualTicker stands in for time.Ticker; ticks are delivered by the test.
type ManualTicker struct {
	C chan time.Time

	mu      sync.Mutex
	periods []time.Duration
	stops   int
}

// NewManualTicker returns a ticker with an unbuffered channel, so Tick blocks
// until the consumer receives.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{C: make(chan time.Time)}
}

// New matches the ticker factory signature used by timing configs.
func (m *ManualTicker) New(d time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	m.periods = append(m.periods, d)
	m.mu.Unlock()
	return m.C, func() {
		m.mu.Lock()
		m.stops++
		m.mu.Unlock()
	}
}

// Tick delivers one tick at t.
func (m *ManualTicker) Tick(t time.Time) {
	m.C <- t
}

// Periods returns the period of every ticker created so far.
func (m *ManualTicker) Periods() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.periods...)
}

// Stops returns how many created tickers were stopped.
func (m *ManualTicker) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
