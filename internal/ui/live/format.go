package live

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"swarmguard/internal/guard"
)

// fmtInt converts an int to string.
func fmtInt(value int) string {
	return strconv.Itoa(value)
}

// formatRate renders a rate per second with one decimal.
func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 1, 64) + "/s"
}

// formatDepth renders the moving average against the target.
func formatDepth(row QueueRow) string {
	return strconv.FormatFloat(row.AverageDepth, 'f', 0, 64) + " / " + strconv.FormatFloat(row.TargetDepth, 'f', 0, 64)
}

// formatAge renders the time since the row was last updated.
func formatAge(row QueueRow, now time.Time) string {
	if row.UpdatedAt.IsZero() {
		return ""
	}
	return formatDuration(now.Sub(row.UpdatedAt))
}

// formatDuration renders a rounded duration for display.
func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	return duration.Round(100 * time.Millisecond).String()
}

// formatMode renders the mode, flagging latched backpressure.
func formatMode(row QueueRow, noColor bool) string {
	label := row.Mode.String()
	if row.Backpressure && row.Mode != guard.ModeBackpressure {
		label += " (bp)"
	}
	if noColor {
		return label
	}
	return modeStyle(row.Mode).Render(label)
}

// modeStyle selects a style for a given mode.
func modeStyle(mode guard.Mode) lipgloss.Style {
	color := lipgloss.Color("244")
	switch mode {
	case guard.ModeSteady:
		color = lipgloss.Color("42")
	case guard.ModePrefill:
		color = lipgloss.Color("201")
	case guard.ModeFilling:
		color = lipgloss.Color("39")
	case guard.ModeDraining:
		color = lipgloss.Color("220")
	case guard.ModeBackpressure:
		color = lipgloss.Color("196")
	}
	return lipgloss.NewStyle().Foreground(color)
}
