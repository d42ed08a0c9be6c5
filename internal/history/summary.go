package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoRuns is returned when the database holds no runs.
var ErrNoRuns = errors.New("history: no runs recorded")

// Summary aggregates the ticks of one queue within a run.
type Summary struct {
	Alias        string
	Queue        string
	Role         string
	Ticks        int64
	Publishes    int64
	AverageDepth float64
	LastRate     float64
	TicksByMode  map[string]int64
}

// LatestRun returns the id of the most recently started run.
func LatestRun(ctx context.Context, db *sql.DB) (string, error) {
	var id string
	err := db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// Summaries returns one summary per queue of runID, ordered by alias.
func Summaries(ctx context.Context, db *sql.DB, runID string) ([]Summary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT alias, any_value(queue), any_value(role), count(*),
		       count(*) FILTER (WHERE published),
		       avg(average_depth), arg_max(applied_rate, at)
		FROM guard_ticks
		WHERE run_id = ?
		GROUP BY alias
		ORDER BY alias`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	index := map[string]int{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Alias, &s.Queue, &s.Role, &s.Ticks, &s.Publishes, &s.AverageDepth, &s.LastRate); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.TicksByMode = map[string]int64{}
		index[s.Alias] = len(out)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read summaries: %w", err)
	}

	modes, err := db.QueryContext(ctx, `
		SELECT alias, mode, count(*)
		FROM guard_ticks
		WHERE run_id = ?
		GROUP BY alias, mode`, runID)
	if err != nil {
		return nil, fmt.Errorf("query mode counts: %w", err)
	}
	defer modes.Close()
	for modes.Next() {
		var alias, mode string
		var n int64
		if err := modes.Scan(&alias, &mode, &n); err != nil {
			return nil, fmt.Errorf("scan mode count: %w", err)
		}
		if i, ok := index[alias]; ok {
			out[i].TicksByMode[mode] = n
		}
	}
	if err := modes.Err(); err != nil {
		return nil, fmt.Errorf("read mode counts: %w", err)
	}
	return out, nil
}
