package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	if noColor {
		return table.DefaultStyles()
	}
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// defaultColumns returns the columns used before the window size is known.
func defaultColumns() []table.Column {
	return columnsForWidth(100)
}

// columnsForWidth widens the queue column to fill the terminal.
func columnsForWidth(width int) []table.Column {
	fixed := []table.Column{
		{Title: "Role", Width: 11},
		{Title: "Mode", Width: 18},
		{Title: "Depth", Width: 8},
		{Title: "Avg / Target", Width: 14},
		{Title: "Rate", Width: 11},
		{Title: "Pubs", Width: 6},
		{Title: "Age", Width: 7},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	queueWidth := max(width-used-2, 12)
	return append([]table.Column{{Title: "Queue", Width: queueWidth}}, fixed...)
}

// rowsForState converts UI state into table rows.
func rowsForState(state State, now time.Time, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Rows))
	for _, row := range state.Rows {
		rows = append(rows, table.Row{
			row.Alias,
			row.Role,
			formatMode(row, noColor),
			fmtInt(int(row.Depth)),
			formatDepth(row),
			formatRate(row.Rate),
			fmtInt(row.Publishes),
			formatAge(row, now),
		})
	}
	return rows
}
