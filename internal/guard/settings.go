package guard

import (
	"math"
	"strings"
	"time"

	"swarmguard/pkg/ratelimiter"
)

const (
	// DefaultSamplePeriod is used when a guard has no usable sample period.
	DefaultSamplePeriod = 5 * time.Second
	// DefaultMovingAverageWindow is used when a guard has no usable window.
	DefaultMovingAverageWindow = 5
	// DefaultMaxIncreasePct caps a single upward rate step.
	DefaultMaxIncreasePct = 10.0
	// DefaultMaxDecreasePct caps a single downward rate step.
	DefaultMaxDecreasePct = 10.0
	// DefaultReductionPct is the backpressure reduction when none is configured.
	DefaultReductionPct = 100.0
)

// Settings configure one buffer guard. They are immutable once a guard starts.
type Settings struct {
	// Queue is the physical name of the guarded queue.
	Queue string
	// QueueAlias is the name the policy document uses for the queue.
	QueueAlias string
	// TargetRole is the producing role whose rate the guard adjusts.
	TargetRole string

	InitialRate float64
	TargetDepth int64
	MinDepth    int64
	MaxDepth    int64

	SamplePeriod        time.Duration
	MovingAverageWindow int

	Adjustment   Adjustment
	Prefill      Prefill
	Backpressure Backpressure
}

// Adjustment bounds each rate step and the rate itself.
type Adjustment struct {
	MaxIncreasePct float64
	MaxDecreasePct float64
	MinRatePerSec  float64
	MaxRatePerSec  float64
}

// Prefill lifts the depth bracket ahead of anticipated demand.
type Prefill struct {
	Enabled   bool
	Lookahead time.Duration
	LiftPct   float64
	// AnticipateAt is when demand is expected. When zero, the prefill window
	// covers the first Lookahead after the guard starts.
	AnticipateAt time.Time
}

// Backpressure forces the rate to its floor while a downstream queue is saturated.
type Backpressure struct {
	DownstreamQueue string
	HighDepth       int64
	RecoveryDepth   int64
	ReductionPct    float64
}

// Label returns the alias when set, else the physical queue name.
func (s Settings) Label() string {
	if s.QueueAlias != "" {
		return s.QueueAlias
	}
	return s.Queue
}

// Normalize returns a copy with every out-of-range field clamped to a safe value.
func (s Settings) Normalize() Settings {
	s.Queue = strings.TrimSpace(s.Queue)
	s.QueueAlias = strings.TrimSpace(s.QueueAlias)
	s.TargetRole = strings.TrimSpace(s.TargetRole)

	if s.SamplePeriod <= 0 {
		s.SamplePeriod = DefaultSamplePeriod
	}
	if s.MovingAverageWindow < 1 {
		s.MovingAverageWindow = DefaultMovingAverageWindow
	}

	s.MinDepth = max(s.MinDepth, 0)
	s.MaxDepth = max(s.MaxDepth, 0)
	if s.MinDepth > s.MaxDepth {
		s.MinDepth, s.MaxDepth = s.MaxDepth, s.MinDepth
	}
	if s.TargetDepth <= 0 {
		s.TargetDepth = s.MinDepth + (s.MaxDepth-s.MinDepth)/2
	}
	s.TargetDepth = min(max(s.TargetDepth, s.MinDepth), s.MaxDepth)

	s.Adjustment = s.Adjustment.normalize()
	s.InitialRate = clampRate(ratelimiter.SanitizeRate(s.InitialRate), s.Adjustment)
	s.Prefill = s.Prefill.normalize()
	s.Backpressure = s.Backpressure.normalize()
	return s
}

// normalize clamps percentages and orders the rate bounds.
func (a Adjustment) normalize() Adjustment {
	a.MaxIncreasePct = sanitizePct(a.MaxIncreasePct, DefaultMaxIncreasePct, math.MaxFloat64)
	a.MaxDecreasePct = sanitizePct(a.MaxDecreasePct, DefaultMaxDecreasePct, 100)
	a.MinRatePerSec = ratelimiter.SanitizeRate(a.MinRatePerSec)
	if math.IsInf(a.MaxRatePerSec, 1) {
		a.MaxRatePerSec = math.MaxFloat64
	}
	a.MaxRatePerSec = ratelimiter.SanitizeRate(a.MaxRatePerSec)
	if a.MaxRatePerSec == 0 {
		a.MaxRatePerSec = math.MaxFloat64
	}
	if a.MinRatePerSec > a.MaxRatePerSec {
		a.MinRatePerSec, a.MaxRatePerSec = a.MaxRatePerSec, a.MinRatePerSec
	}
	return a
}

// normalize disables prefill that cannot take effect.
func (p Prefill) normalize() Prefill {
	if p.Lookahead < 0 {
		p.Lookahead = 0
	}
	p.LiftPct = sanitizePct(p.LiftPct, 0, math.MaxFloat64)
	if p.Lookahead == 0 {
		p.Enabled = false
	}
	return p
}

// normalize orders the backpressure thresholds.
func (b Backpressure) normalize() Backpressure {
	b.DownstreamQueue = strings.TrimSpace(b.DownstreamQueue)
	b.HighDepth = max(b.HighDepth, 0)
	b.RecoveryDepth = min(max(b.RecoveryDepth, 0), b.HighDepth)
	b.ReductionPct = sanitizePct(b.ReductionPct, DefaultReductionPct, 100)
	if b.HighDepth == 0 {
		b.DownstreamQueue = ""
	}
	return b
}

// sanitizePct replaces negative or non-finite percentages with fallback and caps at limit.
func sanitizePct(v, fallback, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fallback
	}
	return math.Min(v, limit)
}

// clampRate bounds rate by the adjustment floor and ceiling.
func clampRate(rate float64, a Adjustment) float64 {
	return math.Min(math.Max(rate, a.MinRatePerSec), a.MaxRatePerSec)
}
