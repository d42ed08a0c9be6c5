package live

import (
	"time"

	"swarmguard/internal/guard"
)

// QueueRow holds UI state for a single guarded queue.
type QueueRow struct {
	Alias        string
	Queue        string
	Role         string
	Mode         guard.Mode
	Depth        int64
	AverageDepth float64
	TargetDepth  float64
	Rate         float64
	Backpressure bool
	Publishes    int
	UpdatedAt    time.Time
}

// ModeCounts aggregates rows by guard mode.
type ModeCounts struct {
	Disabled     int
	Steady       int
	Prefill      int
	Filling      int
	Draining     int
	Backpressure int
}

// State captures the live UI state of one engine.
type State struct {
	Swarm      string
	InstanceID string
	Guards     int
	StartedAt  time.Time
	Stopped    bool
	LastEvent  string
	Rows       []QueueRow
	Counts     ModeCounts
}
