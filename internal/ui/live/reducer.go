package live

import (
	"fmt"
	"sort"

	"swarmguard/internal/guard"
)

// Reduce applies a guard snapshot to the UI state.
func Reduce(state State, snap guard.Snapshot) State {
	key := snap.Alias
	if key == "" {
		key = snap.Queue
	}
	index := sort.Search(len(state.Rows), func(i int) bool { return state.Rows[i].Alias >= key })
	if index == len(state.Rows) || state.Rows[index].Alias != key {
		rows := make([]QueueRow, 0, len(state.Rows)+1)
		rows = append(rows, state.Rows[:index]...)
		rows = append(rows, QueueRow{Alias: key, Mode: guard.ModeDisabled})
		rows = append(rows, state.Rows[index:]...)
		state.Rows = rows
	}

	row := state.Rows[index]
	if message := formatLastEvent(row, snap); message != "" {
		state.LastEvent = message
	}
	row.Queue = snap.Queue
	row.Role = snap.Role
	row.Mode = snap.Mode
	row.Depth = snap.Depth
	row.AverageDepth = snap.AverageDepth
	row.TargetDepth = snap.TargetDepth
	row.Rate = snap.AppliedRate
	row.Backpressure = snap.Backpressure
	row.UpdatedAt = snap.At
	if snap.Published {
		row.Publishes++
	}
	state.Rows[index] = row
	state.Counts = recount(state.Rows)
	return state
}

// recount recomputes mode counts for the current rows.
func recount(rows []QueueRow) ModeCounts {
	var counts ModeCounts
	for _, row := range rows {
		switch row.Mode {
		case guard.ModeDisabled:
			counts.Disabled++
		case guard.ModeSteady:
			counts.Steady++
		case guard.ModePrefill:
			counts.Prefill++
		case guard.ModeFilling:
			counts.Filling++
		case guard.ModeDraining:
			counts.Draining++
		case guard.ModeBackpressure:
			counts.Backpressure++
		}
	}
	return counts
}

// formatLastEvent describes what changed between the row and the snapshot.
func formatLastEvent(row QueueRow, snap guard.Snapshot) string {
	if snap.Published {
		return fmt.Sprintf("%s rate %s -> %s (%s)", row.Alias, formatRate(row.Rate), formatRate(snap.AppliedRate), snap.Role)
	}
	if !row.UpdatedAt.IsZero() && row.Mode != snap.Mode {
		return fmt.Sprintf("%s %s -> %s", row.Alias, row.Mode, snap.Mode)
	}
	return ""
}
