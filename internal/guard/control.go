package guard

import (
	"math"
	"time"
)

// publishThreshold is the minimum relative rate change worth publishing.
const publishThreshold = 0.01

// downstreamReading is the outcome of querying the downstream queue.
type downstreamReading struct {
	depth    int64
	observed bool
}

// decision is the result of one control step.
type decision struct {
	mode        Mode
	rate        float64
	average     float64
	targetDepth float64
}

// step runs the control law for one sample, updating the window, the last
// sample and the backpressure latch in st. It does not touch st.CurrentRate
// or st.Mode; the caller applies those after publishing.
func step(s Settings, st *State, now time.Time, depth int64, downstream downstreamReading) decision {
	factor := 1.0
	prefill := false
	if s.Prefill.Enabled && st.prefillActive(now, s.Prefill.Lookahead) {
		factor = 1 + s.Prefill.LiftPct/100
		prefill = true
	}
	minDepth := float64(s.MinDepth) * factor
	maxDepth := float64(s.MaxDepth) * factor
	targetDepth := float64(s.TargetDepth) * factor

	st.window.push(depth)
	average := st.window.average()
	drain := st.drainEstimate(now, depth)
	st.LastDepth = depth
	st.LastSample = now

	adj := s.Adjustment
	current := st.CurrentRate
	var mode Mode
	var next float64
	switch {
	case average < minDepth:
		mode = ModeFilling
		next = current + math.Max(1, current*adj.MaxIncreasePct/100)
	case average > maxDepth:
		mode = ModeDraining
		next = current - math.Max(1, current*adj.MaxDecreasePct/100)
	default:
		mode = ModeSteady
		if prefill {
			mode = ModePrefill
		}
		windowSeconds := math.Max(s.SamplePeriod.Seconds()*float64(s.MovingAverageWindow), 1e-3)
		gain := (adj.MaxIncreasePct + adj.MaxDecreasePct) / 200
		correction := (targetDepth - average) / windowSeconds * gain
		next = boundStep(current, drain+correction, adj)
	}
	next = clampRate(next, adj)

	if s.Backpressure.DownstreamQueue != "" && downstream.observed {
		if st.Backpressure {
			if downstream.depth <= s.Backpressure.RecoveryDepth {
				st.Backpressure = false
			}
		} else if downstream.depth >= s.Backpressure.HighDepth {
			st.Backpressure = true
		}
	}
	if st.Backpressure {
		mode = ModeBackpressure
		next = adj.MinRatePerSec
	}

	return decision{mode: mode, rate: next, average: average, targetDepth: targetDepth}
}

// boundStep moves from current toward desired by at most one capped step.
func boundStep(current, desired float64, adj Adjustment) float64 {
	if desired > current {
		up := math.Max(1, current*adj.MaxIncreasePct/100)
		return math.Min(desired, current+up)
	}
	down := math.Max(1, current*adj.MaxDecreasePct/100)
	return math.Max(desired, current-down)
}

// shouldPublish reports whether candidate differs from applied by at least
// publishThreshold relative to applied.
func shouldPublish(applied, candidate float64) bool {
	if candidate == applied {
		return false
	}
	if applied <= 0 {
		return true
	}
	return math.Abs(candidate-applied)/applied >= publishThreshold
}
