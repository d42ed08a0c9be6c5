package guard

import (
	"math"
	"testing"
	"time"
)

// TestNormalizeDefaults verifies empty settings become usable.
func TestNormalizeDefaults(t *testing.T) {
	s := Settings{Queue: "  work  ", MinDepth: 10, MaxDepth: 30}.Normalize()
	if s.Queue != "work" {
		t.Fatalf("expected trimmed queue, got %q", s.Queue)
	}
	if s.SamplePeriod != DefaultSamplePeriod || s.MovingAverageWindow != DefaultMovingAverageWindow {
		t.Fatalf("unexpected sampling defaults %v/%d", s.SamplePeriod, s.MovingAverageWindow)
	}
	if s.TargetDepth != 20 {
		t.Fatalf("expected midpoint target 20, got %d", s.TargetDepth)
	}
	if s.Adjustment.MaxIncreasePct != DefaultMaxIncreasePct || s.Adjustment.MaxDecreasePct != DefaultMaxDecreasePct {
		t.Fatalf("unexpected step defaults %+v", s.Adjustment)
	}
	if s.Adjustment.MaxRatePerSec != math.MaxFloat64 {
		t.Fatalf("expected unbounded max rate, got %v", s.Adjustment.MaxRatePerSec)
	}
}

// TestNormalizeClampsRanges verifies inverted and out-of-range values are repaired.
func TestNormalizeClampsRanges(t *testing.T) {
	s := Settings{
		InitialRate: 5000,
		TargetDepth: 900,
		MinDepth:    300,
		MaxDepth:    100,
		Adjustment: Adjustment{
			MaxIncreasePct: math.NaN(),
			MaxDecreasePct: 250,
			MinRatePerSec:  50,
			MaxRatePerSec:  10,
		},
		Backpressure: Backpressure{DownstreamQueue: "final", HighDepth: 100, RecoveryDepth: 400, ReductionPct: -1},
	}.Normalize()

	if s.MinDepth != 100 || s.MaxDepth != 300 || s.TargetDepth != 300 {
		t.Fatalf("unexpected depths %d/%d/%d", s.MinDepth, s.TargetDepth, s.MaxDepth)
	}
	if s.Adjustment.MaxIncreasePct != DefaultMaxIncreasePct || s.Adjustment.MaxDecreasePct != 100 {
		t.Fatalf("unexpected percentages %+v", s.Adjustment)
	}
	if s.Adjustment.MinRatePerSec != 10 || s.Adjustment.MaxRatePerSec != 50 {
		t.Fatalf("expected swapped rate bounds, got %+v", s.Adjustment)
	}
	if s.InitialRate != 50 {
		t.Fatalf("expected initial rate clamped to 50, got %v", s.InitialRate)
	}
	if s.Backpressure.RecoveryDepth != 100 || s.Backpressure.ReductionPct != DefaultReductionPct {
		t.Fatalf("unexpected backpressure %+v", s.Backpressure)
	}
}

// TestNormalizeDisablesInertFeatures verifies prefill and backpressure need thresholds.
func TestNormalizeDisablesInertFeatures(t *testing.T) {
	s := Settings{
		Prefill:      Prefill{Enabled: true, LiftPct: 20},
		Backpressure: Backpressure{DownstreamQueue: "final"},
	}.Normalize()
	if s.Prefill.Enabled {
		t.Fatalf("expected prefill without lookahead to be disabled")
	}
	if s.Backpressure.DownstreamQueue != "" {
		t.Fatalf("expected backpressure without high depth to be disabled")
	}

	s = Settings{Prefill: Prefill{Enabled: true, Lookahead: time.Minute, LiftPct: -5}}.Normalize()
	if !s.Prefill.Enabled || s.Prefill.LiftPct != 0 {
		t.Fatalf("unexpected prefill %+v", s.Prefill)
	}
}

// TestLabelPrefersAlias verifies the display name.
func TestLabelPrefersAlias(t *testing.T) {
	if got := (Settings{Queue: "q", QueueAlias: "a"}).Label(); got != "a" {
		t.Fatalf("expected alias, got %q", got)
	}
	if got := (Settings{Queue: "q"}).Label(); got != "q" {
		t.Fatalf("expected queue, got %q", got)
	}
}

// TestWindowEvictsOldest verifies the ring average.
func TestWindowEvictsOldest(t *testing.T) {
	w := newWindow(3)
	if w.average() != 0 {
		t.Fatalf("expected empty average 0")
	}
	for _, v := range []int64{3, 6, 9, 12} {
		w.push(v)
	}
	if w.len() != 3 {
		t.Fatalf("expected 3 samples, got %d", w.len())
	}
	if w.average() != 9 {
		t.Fatalf("expected average 9, got %v", w.average())
	}
}

// TestDrainEstimateFloorsAtZero verifies fast growth never yields a negative estimate.
func TestDrainEstimateFloorsAtZero(t *testing.T) {
	start := time.Unix(0, 0)
	st := newState(Settings{InitialRate: 10, MovingAverageWindow: 1}, start)
	if got := st.drainEstimate(start, 100); got != 10 {
		t.Fatalf("expected first sample to fall back to 10, got %v", got)
	}
	st.LastSample = start
	st.LastDepth = 100
	if got := st.drainEstimate(start.Add(time.Second), 500); got != 0 {
		t.Fatalf("expected floor 0, got %v", got)
	}
	if got := st.drainEstimate(start.Add(2*time.Second), 80); got != 20 {
		t.Fatalf("expected 20, got %v", got)
	}
}

// TestModeNames verifies mode labels and gauge codes.
func TestModeNames(t *testing.T) {
	if ModeBackpressure.Code() != 5 || ModeDisabled.Code() != 0 {
		t.Fatalf("unexpected mode codes")
	}
	if ModePrefill.String() != "prefill" {
		t.Fatalf("unexpected name %q", ModePrefill.String())
	}
}
