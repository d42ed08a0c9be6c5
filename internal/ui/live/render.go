package live

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the engine header line.
func renderHeader(state State, now time.Time, noColor bool) string {
	line := "Swarm " + state.Swarm
	if state.InstanceID != "" {
		line += " | Instance: " + state.InstanceID
	}
	line += " | Guards: " + fmtInt(state.Guards)
	if !state.StartedAt.IsZero() {
		line += " | Elapsed: " + now.Sub(state.StartedAt).Round(time.Second).String()
	}
	if state.Stopped {
		line += " | stopped"
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderSummary renders the mode counts line.
func renderSummary(state State, noColor bool) string {
	counts := state.Counts
	line := "Steady: " + fmtInt(counts.Steady) +
		" Prefill: " + fmtInt(counts.Prefill) +
		" Filling: " + fmtInt(counts.Filling) +
		" Draining: " + fmtInt(counts.Draining) +
		" Backpressure: " + fmtInt(counts.Backpressure) +
		" Disabled: " + fmtInt(counts.Disabled)
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderFooter renders the last event line and key help.
func renderFooter(state State, noColor bool) string {
	line := "q: quit"
	if state.LastEvent != "" {
		line = "Last event: " + state.LastEvent + " | " + line
	}
	return stylize(line, noColor, lipgloss.Color("244"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
