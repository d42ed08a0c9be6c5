package guard

import (
	"sync/atomic"
	"testing"
	"time"

	"swarmguard/internal/testutil"
)

// TestStartTicksImmediately verifies the first sample is taken on start.
func TestStartTicksImmediately(t *testing.T) {
	stats := newFakeStats()
	stats.set("ph.swarm.work", 10)
	pub := &fakePublisher{}
	ticker := testutil.NewManualTicker()
	g := newGuard(Config{Swarm: "demo", Settings: baseSettings(), Stats: stats, Publisher: pub},
		timingConfig{newTicker: ticker.New})

	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(g.Stop)

	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return g.Snapshot().Mode == ModeFilling
	}, "guard did not tick on start")
	if calls := pub.published(); len(calls) != 1 || calls[0].rate != 110 {
		t.Fatalf("unexpected publications %+v", calls)
	}
}

// TestTickerDrivesSubsequentTicks verifies each tick event samples once.
func TestTickerDrivesSubsequentTicks(t *testing.T) {
	stats := newFakeStats()
	stats.set("ph.swarm.work", 200)
	var ticks atomic.Int32
	ticker := testutil.NewManualTicker()
	g := newGuard(Config{
		Settings: baseSettings(),
		Stats:    stats,
		Observer: ObserverFunc(func(Snapshot) { ticks.Add(1) }),
	}, timingConfig{newTicker: ticker.New})
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(g.Stop)

	runWithTimeout(t, time.Second, func() {
		ticker.Tick(time.Now())
		ticker.Tick(time.Now())
	})
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return ticks.Load() == 3
	}, "expected three ticks")
	if periods := ticker.Periods(); len(periods) != 1 || periods[0] != baseSettings().SamplePeriod {
		t.Fatalf("expected one ticker at the sample period, got %v", periods)
	}
	g.Stop()
	if ticker.Stops() != 1 {
		t.Fatalf("expected ticker stopped, got %d stops", ticker.Stops())
	}
}

// TestLifecycleIsIdempotent verifies repeated start and stop calls are harmless.
func TestLifecycleIsIdempotent(t *testing.T) {
	s := baseSettings()
	s.SamplePeriod = 5 * time.Millisecond
	stats := newFakeStats()
	stats.set("ph.swarm.work", 200)
	g := New(Config{Settings: s, Stats: stats})

	g.Stop()
	if g.Running() {
		t.Fatalf("expected stopped guard")
	}
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !g.Running() {
		t.Fatalf("expected running guard")
	}
	testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
		return g.Snapshot().Mode == ModeSteady
	}, "guard never reached steady")

	runWithTimeout(t, time.Second, g.Stop)
	runWithTimeout(t, time.Second, g.Stop)
	if g.Running() {
		t.Fatalf("expected stopped guard")
	}
	if snap := g.Snapshot(); snap.Mode != ModeDisabled {
		t.Fatalf("expected disabled snapshot after stop, got %s", snap.Mode)
	}
}

// TestStopHaltsSampling verifies no tick runs after Stop returns.
func TestStopHaltsSampling(t *testing.T) {
	s := baseSettings()
	s.SamplePeriod = 2 * time.Millisecond
	stats := newFakeStats()
	stats.set("ph.swarm.work", 200)
	g := New(Config{Settings: s, Stats: stats})
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
		stats.mu.Lock()
		defer stats.mu.Unlock()
		return stats.calls >= 3
	}, "guard did not sample")
	g.Stop()

	stats.mu.Lock()
	calls := stats.calls
	stats.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	stats.mu.Lock()
	defer stats.mu.Unlock()
	if stats.calls != calls {
		t.Fatalf("expected no samples after stop, got %d more", stats.calls-calls)
	}
}

// TestRestartResetsState verifies a stopped guard restarts from its initial rate.
func TestRestartResetsState(t *testing.T) {
	stats := newFakeStats()
	stats.set("ph.swarm.work", 10)
	ticker := testutil.NewManualTicker()
	g := newGuard(Config{Settings: baseSettings(), Stats: stats, Publisher: &fakePublisher{}},
		timingConfig{newTicker: ticker.New})

	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return g.Snapshot().AppliedRate == 110
	}, "guard did not raise the rate")
	g.Stop()

	stats.set("ph.swarm.work", 200)
	if err := g.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	t.Cleanup(g.Stop)
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		snap := g.Snapshot()
		return snap.Mode == ModeSteady && snap.AppliedRate == 100
	}, "restart did not reset the applied rate")
}

// TestNilCollaboratorsDisable verifies a guard without ports reports disabled.
func TestNilCollaboratorsDisable(t *testing.T) {
	ticker := testutil.NewManualTicker()
	g := newGuard(Config{Settings: baseSettings()}, timingConfig{newTicker: ticker.New})
	if err := g.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(g.Stop)
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return !g.Snapshot().At.IsZero()
	}, "guard did not tick")
	if snap := g.Snapshot(); snap.Mode != ModeDisabled || snap.AppliedRate != 100 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

// TestSnapshotIdentifiesGuard verifies snapshot labels.
func TestSnapshotIdentifiesGuard(t *testing.T) {
	h := newHarness(t, baseSettings())
	h.stats.set("ph.swarm.work", 250)
	snap := h.tick()
	if snap.Swarm != "demo" || snap.Queue != "ph.swarm.work" || snap.Alias != "work" || snap.Role != "generator" {
		t.Fatalf("unexpected labels %+v", snap)
	}
	if snap.Depth != 250 || snap.TargetDepth != 200 {
		t.Fatalf("unexpected depths %+v", snap)
	}
	if len(h.snaps) != 1 || h.snaps[0].At != h.clock.Now() {
		t.Fatalf("expected observer to receive the tick snapshot")
	}
}
