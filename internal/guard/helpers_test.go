package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"swarmguard/internal/testutil"
)

// fakeStats serves queue depths from a map.
type fakeStats struct {
	mu     sync.Mutex
	depths map[string]int64
	errs   map[string]error
	panics bool
	calls  int
}

func newFakeStats() *fakeStats {
	return &fakeStats{depths: map[string]int64{}, errs: map[string]error{}}
}

func (f *fakeStats) Depth(_ context.Context, queue string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("broker exploded")
	}
	if err := f.errs[queue]; err != nil {
		return 0, false, err
	}
	depth, ok := f.depths[queue]
	return depth, ok, nil
}

func (f *fakeStats) set(queue string, depth int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depths[queue] = depth
}

func (f *fakeStats) fail(queue string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[queue] = err
}

func (f *fakeStats) setPanics(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics = v
}

// publishCall records one rate publication.
type publishCall struct {
	role string
	rate float64
}

// fakePublisher records publications and can fail on demand.
type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, role string, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, publishCall{role: role, rate: rate})
	return nil
}

func (f *fakePublisher) published() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishCall(nil), f.calls...)
}

func (f *fakePublisher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

var errBroker = errors.New("broker unavailable")

// baseSettings returns a guard configuration used across tests.
func baseSettings() Settings {
	return Settings{
		Queue:               "ph.swarm.work",
		QueueAlias:          "work",
		TargetRole:          "generator",
		InitialRate:         100,
		TargetDepth:         200,
		MinDepth:            100,
		MaxDepth:            300,
		SamplePeriod:        time.Second,
		MovingAverageWindow: 1,
		Adjustment: Adjustment{
			MaxIncreasePct: 10,
			MaxDecreasePct: 20,
			MinRatePerSec:  5,
			MaxRatePerSec:  1000,
		},
	}
}

// harness drives a guard tick by tick with a fake clock.
type harness struct {
	guard *Guard
	state *State
	clock *testutil.FakeClock
	stats *fakeStats
	pub   *fakePublisher
	snaps []Snapshot
}

// newHarness builds a guard whose ticks are invoked synchronously.
func newHarness(t *testing.T, s Settings) *harness {
	t.Helper()
	h := &harness{
		clock: testutil.NewFakeClock(time.Unix(1_700_000_000, 0)),
		stats: newFakeStats(),
		pub:   &fakePublisher{},
	}
	h.guard = newGuard(Config{
		Swarm:     "demo",
		Settings:  s,
		Stats:     h.stats,
		Publisher: h.pub,
		Observer:  ObserverFunc(func(snap Snapshot) { h.snaps = append(h.snaps, snap) }),
	}, timingConfig{now: h.clock.Now})
	h.state = newState(h.guard.settings, h.clock.Now())
	return h
}

// tick advances the clock by one sample period and runs a tick.
func (h *harness) tick() Snapshot {
	h.clock.Advance(h.guard.settings.SamplePeriod)
	h.guard.tick(context.Background(), h.state)
	return h.guard.Snapshot()
}

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
