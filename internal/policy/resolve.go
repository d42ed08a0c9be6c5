package policy

import (
	"strings"
	"time"

	"swarmguard/internal/guard"
)

// Resolve validates doc and maps every queue alias to normalized guard
// settings, ordered by alias.
func Resolve(doc Document) ([]guard.Settings, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	out := make([]guard.Settings, 0, len(doc.Queues))
	for _, alias := range aliases(doc) {
		out = append(out, resolveQueue(doc, alias, doc.Queues[alias]).Normalize())
	}
	return out, nil
}

// resolveQueue applies the document defaults to one queue.
func resolveQueue(doc Document, alias string, q Queue) guard.Settings {
	s := guard.Settings{
		Queue:               physicalName(doc, alias, q),
		QueueAlias:          strings.TrimSpace(alias),
		TargetRole:          strings.TrimSpace(q.Producer),
		InitialRate:         q.InitialRate,
		TargetDepth:         q.TargetDepth,
		MinDepth:            q.MinDepth,
		MaxDepth:            q.MaxDepth,
		SamplePeriod:        firstDuration(q.SamplePeriod, doc.Defaults.SamplePeriod),
		MovingAverageWindow: firstInt(q.MovingAverageWindow, doc.Defaults.MovingAverageWindow),
		Adjustment:          resolveAdjustment(q.Adjustment, doc.Defaults.Adjustment),
	}
	if p := q.Prefill; p != nil {
		s.Prefill = guard.Prefill{
			Enabled:   p.Enabled,
			Lookahead: p.Lookahead,
			LiftPct:   p.LiftPct,
		}
		if at, err := time.Parse(time.RFC3339, p.AnticipateAt); err == nil {
			s.Prefill.AnticipateAt = at
		}
	}
	if b := q.Backpressure; b != nil {
		downstream := strings.TrimSpace(b.Downstream)
		s.Backpressure = guard.Backpressure{
			DownstreamQueue: physicalName(doc, downstream, doc.Queues[downstream]),
			HighDepth:       b.HighDepth,
			RecoveryDepth:   b.RecoveryDepth,
			ReductionPct:    b.ReductionPct,
		}
	}
	return s
}

func resolveAdjustment(q, d Adjustment) guard.Adjustment {
	return guard.Adjustment{
		MaxIncreasePct: firstFloat(q.MaxIncreasePct, d.MaxIncreasePct),
		MaxDecreasePct: firstFloat(q.MaxDecreasePct, d.MaxDecreasePct),
		MinRatePerSec:  firstFloat(q.MinRatePerSec, d.MinRatePerSec),
		MaxRatePerSec:  firstFloat(q.MaxRatePerSec, d.MaxRatePerSec),
	}
}

func firstDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

func firstInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
