package live

import "swarmguard/internal/guard"

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventEngineStart signals that the guard engine started.
	EventEngineStart EventKind = iota
	// EventTick delivers a guard snapshot.
	EventTick
	// EventEngineStop signals that the guard engine stopped.
	EventEngineStop
)

// Event carries a UI update payload.
type Event struct {
	Kind       EventKind
	Swarm      string
	InstanceID string
	Guards     int
	Snapshot   guard.Snapshot
}
