package guard

import "time"

// window is a bounded ring of recent depth samples.
type window struct {
	samples []int64
	next    int
	count   int
	sum     int64
}

// newWindow allocates a ring holding size samples.
func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{samples: make([]int64, size)}
}

// push records a sample, evicting the oldest once full.
func (w *window) push(v int64) {
	if w.count == len(w.samples) {
		w.sum -= w.samples[w.next]
	} else {
		w.count++
	}
	w.samples[w.next] = v
	w.sum += v
	w.next = (w.next + 1) % len(w.samples)
}

// average returns the mean of the held samples, or zero when empty.
func (w *window) average() float64 {
	if w.count == 0 {
		return 0
	}
	return float64(w.sum) / float64(w.count)
}

// len returns the number of held samples.
func (w *window) len() int {
	return w.count
}

// State is the mutable control state of one running guard. It lives from
// Start to Stop and is only touched by the guard's tick goroutine.
type State struct {
	window *window

	CurrentRate  float64
	PrefillEnd   time.Time
	Backpressure bool
	Mode         Mode
	LastDepth    int64
	LastSample   time.Time
}

// newState builds the initial state for settings at start time.
func newState(s Settings, start time.Time) *State {
	st := &State{
		window:      newWindow(s.MovingAverageWindow),
		CurrentRate: s.InitialRate,
		Mode:        ModeDisabled,
	}
	if s.Prefill.Enabled {
		st.PrefillEnd = s.Prefill.AnticipateAt
		if st.PrefillEnd.IsZero() {
			st.PrefillEnd = start.Add(s.Prefill.Lookahead)
		}
	}
	return st
}

// AverageDepth returns the moving-average depth.
func (st *State) AverageDepth() float64 {
	return st.window.average()
}

// prefillActive reports whether now falls within lookahead of the prefill end.
func (st *State) prefillActive(now time.Time, lookahead time.Duration) bool {
	if st.PrefillEnd.IsZero() {
		return false
	}
	return now.Before(st.PrefillEnd) && !now.Before(st.PrefillEnd.Add(-lookahead))
}

// drainEstimate infers the consumption rate from the depth change since the
// previous sample. The first sample falls back to the current rate.
func (st *State) drainEstimate(now time.Time, depth int64) float64 {
	if st.LastSample.IsZero() {
		return st.CurrentRate
	}
	elapsed := now.Sub(st.LastSample).Seconds()
	if elapsed <= 0 {
		return st.CurrentRate
	}
	estimate := st.CurrentRate - float64(depth-st.LastDepth)/elapsed
	if estimate < 0 {
		return 0
	}
	return estimate
}
