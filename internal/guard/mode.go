package guard

// Mode is the operating state of a buffer guard. The integer value is the
// telemetry encoding.
type Mode int

const (
	// ModeDisabled means the guard is stopped, paused or cannot observe its queue.
	ModeDisabled Mode = iota
	// ModeSteady holds the queue inside its depth bracket.
	ModeSteady
	// ModePrefill holds the queue inside a lifted bracket ahead of expected demand.
	ModePrefill
	// ModeFilling raises the rate because the queue is below its bracket.
	ModeFilling
	// ModeDraining lowers the rate because the queue is above its bracket.
	ModeDraining
	// ModeBackpressure pins the rate to its floor while downstream is saturated.
	ModeBackpressure
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeSteady:
		return "steady"
	case ModePrefill:
		return "prefill"
	case ModeFilling:
		return "filling"
	case ModeDraining:
		return "draining"
	case ModeBackpressure:
		return "backpressure"
	default:
		return "unknown"
	}
}

// Code returns the telemetry encoding of the mode.
func (m Mode) Code() int64 {
	return int64(m)
}
