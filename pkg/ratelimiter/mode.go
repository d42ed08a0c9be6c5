package ratelimiter

import (
	"math"
	"time"
)

// DefaultSinePeriod replaces a non-positive sine period.
const DefaultSinePeriod = 60 * time.Second

// ModeKind identifies the variant of a Mode.
type ModeKind int

const (
	// KindPassThrough emits without pacing.
	KindPassThrough ModeKind = iota
	// KindConstant emits at a fixed rate.
	KindConstant
	// KindSine emits at a sinusoidally modulated rate.
	KindSine
)

// String returns the lowercase name of the kind.
func (k ModeKind) String() string {
	switch k {
	case KindPassThrough:
		return "pass-through"
	case KindConstant:
		return "constant"
	case KindSine:
		return "sine"
	default:
		return "unknown"
	}
}

// Mode is the operating mode of a limiter. It is a closed set of variants:
// PassThrough, Constant and Sine.
type Mode interface {
	// Kind reports the variant.
	Kind() ModeKind
	// RateAt returns the emission rate per second after elapsed time in the mode.
	RateAt(elapsed time.Duration) float64

	isMode()
}

// PassThrough disables pacing.
type PassThrough struct{}

// Constant paces at a fixed rate.
type Constant struct {
	RatePerSec float64
}

// Sine paces at a rate oscillating between MinRatePerSec and MaxRatePerSec.
type Sine struct {
	MinRatePerSec float64
	MaxRatePerSec float64
	Period        time.Duration
	PhaseOffset   time.Duration
}

// NewConstant returns a Constant with a sanitized rate.
func NewConstant(ratePerSec float64) Constant {
	return Constant{RatePerSec: SanitizeRate(ratePerSec)}
}

// NewSine returns a Sine with sanitized rates, ordered bounds and a usable period.
func NewSine(minRatePerSec, maxRatePerSec float64, period time.Duration, phaseOffsetSeconds float64) Sine {
	lo := SanitizeRate(minRatePerSec)
	hi := SanitizeRate(maxRatePerSec)
	if lo > hi {
		lo, hi = hi, lo
	}
	if period <= 0 {
		period = DefaultSinePeriod
	}
	if math.IsNaN(phaseOffsetSeconds) || math.IsInf(phaseOffsetSeconds, 0) {
		phaseOffsetSeconds = 0
	}
	return Sine{
		MinRatePerSec: lo,
		MaxRatePerSec: hi,
		Period:        period,
		PhaseOffset:   time.Duration(phaseOffsetSeconds * float64(time.Second)),
	}
}

// SanitizeRate maps NaN, infinities and negative values to zero.
func SanitizeRate(rate float64) float64 {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0
	}
	return rate
}

// Kind implements Mode.
func (PassThrough) Kind() ModeKind { return KindPassThrough }

// RateAt implements Mode; pass-through has no configured rate.
func (PassThrough) RateAt(time.Duration) float64 { return 0 }

func (PassThrough) isMode() {}

// Kind implements Mode.
func (Constant) Kind() ModeKind { return KindConstant }

// RateAt implements Mode.
func (c Constant) RateAt(time.Duration) float64 { return SanitizeRate(c.RatePerSec) }

func (Constant) isMode() {}

// Kind implements Mode.
func (Sine) Kind() ModeKind { return KindSine }

// RateAt implements Mode.
func (s Sine) RateAt(elapsed time.Duration) float64 {
	n := NewSine(s.MinRatePerSec, s.MaxRatePerSec, s.Period, s.PhaseOffset.Seconds())
	amplitude := (n.MaxRatePerSec - n.MinRatePerSec) / 2
	center := n.MinRatePerSec + amplitude
	if amplitude == 0 {
		return center
	}
	cycles := (elapsed + n.PhaseOffset).Seconds() / n.Period.Seconds()
	rate := center + amplitude*math.Sin(2*math.Pi*cycles)
	return math.Min(math.Max(rate, n.MinRatePerSec), n.MaxRatePerSec)
}

func (Sine) isMode() {}

// modeOrPassThrough treats a nil mode as pass-through.
func modeOrPassThrough(mode Mode) Mode {
	if mode == nil {
		return PassThrough{}
	}
	return mode
}
