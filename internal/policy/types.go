// Package policy loads guard policy documents and resolves them into guard settings.
package policy

import "time"

// SupportedVersion is the only policy document version understood.
const SupportedVersion = 1

// DefaultQueuePrefix prefixes physical queue names derived from aliases.
const DefaultQueuePrefix = "ph"

// Document is a parsed policy document.
type Document struct {
	Version     int              `yaml:"version"`
	Swarm       string           `yaml:"swarm"`
	QueuePrefix string           `yaml:"queue_prefix"`
	Defaults    Defaults         `yaml:"defaults"`
	Queues      map[string]Queue `yaml:"queues"`
}

// Defaults apply to every queue that leaves the field unset.
type Defaults struct {
	SamplePeriod        time.Duration `yaml:"sample_period"`
	MovingAverageWindow int           `yaml:"moving_average_window"`
	Adjustment          Adjustment    `yaml:"adjustment"`
}

// Queue is the guard policy of one queue alias.
type Queue struct {
	Name                string        `yaml:"name"`
	Producer            string        `yaml:"producer"`
	InitialRate         float64       `yaml:"initial_rate"`
	TargetDepth         int64         `yaml:"target_depth"`
	MinDepth            int64         `yaml:"min_depth"`
	MaxDepth            int64         `yaml:"max_depth"`
	SamplePeriod        time.Duration `yaml:"sample_period"`
	MovingAverageWindow int           `yaml:"moving_average_window"`
	Adjustment          Adjustment    `yaml:"adjustment"`
	Prefill             *Prefill      `yaml:"prefill"`
	Backpressure        *Backpressure `yaml:"backpressure"`
}

// Adjustment bounds rate steps; zero fields inherit the defaults.
type Adjustment struct {
	MaxIncreasePct float64 `yaml:"max_increase_pct"`
	MaxDecreasePct float64 `yaml:"max_decrease_pct"`
	MinRatePerSec  float64 `yaml:"min_rate_per_sec"`
	MaxRatePerSec  float64 `yaml:"max_rate_per_sec"`
}

// Prefill configures the anticipatory bracket lift.
type Prefill struct {
	Enabled      bool          `yaml:"enabled"`
	Lookahead    time.Duration `yaml:"lookahead"`
	LiftPct      float64       `yaml:"lift_pct"`
	AnticipateAt string        `yaml:"anticipate_at"`
}

// Backpressure names the downstream alias whose depth forces the rate floor.
type Backpressure struct {
	Downstream    string  `yaml:"downstream"`
	HighDepth     int64   `yaml:"high_depth"`
	RecoveryDepth int64   `yaml:"recovery_depth"`
	ReductionPct  float64 `yaml:"reduction_pct"`
}
