package guard

import (
	"context"
	"time"
)

// QueueStats reports queue depth. ok is false when the queue does not exist yet.
type QueueStats interface {
	Depth(ctx context.Context, queue string) (depth int64, ok bool, err error)
}

// RatePublisher asks a role to change its emission rate. Delivery is best effort.
type RatePublisher interface {
	Publish(ctx context.Context, role string, ratePerSec float64) error
}

// Observer receives a snapshot after every tick.
type Observer interface {
	OnTick(snapshot Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

// OnTick implements Observer.
func (f ObserverFunc) OnTick(snapshot Snapshot) {
	f(snapshot)
}

// Snapshot is the telemetry view of one guard after a tick.
type Snapshot struct {
	Swarm        string
	Queue        string
	Alias        string
	Role         string
	Mode         Mode
	Depth        int64
	AverageDepth float64
	TargetDepth  float64
	AppliedRate  float64
	Candidate    float64
	Backpressure bool
	Published    bool
	At           time.Time
}
