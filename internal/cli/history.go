package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"swarmguard/internal/history"
)

func runHistory(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		dbPath := flags.String("db", "", "Path to the history database")
		runID := flags.String("run", "", "Run id (default: latest run)")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		if strings.TrimSpace(*dbPath) == "" {
			fmt.Fprintln(stderr, "--db is required")
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		ctx := context.Background()
		db, err := history.Open(ctx, *dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "History failed: %v\n", err)
			return ExitError
		}
		defer db.Close()

		id := strings.TrimSpace(*runID)
		if id == "" {
			id, err = history.LatestRun(ctx, db)
			if errors.Is(err, history.ErrNoRuns) {
				fmt.Fprintln(stdout, "No runs recorded.")
				return ExitOK
			}
			if err != nil {
				fmt.Fprintf(stderr, "History failed: %v\n", err)
				return ExitError
			}
		}
		summaries, err := history.Summaries(ctx, db, id)
		if err != nil {
			fmt.Fprintf(stderr, "History failed: %v\n", err)
			return ExitError
		}
		if len(summaries) == 0 {
			fmt.Fprintf(stdout, "Run %s has no recorded ticks.\n", id)
			return ExitOK
		}

		fmt.Fprintf(stdout, "Run %s\n", id)
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ALIAS\tQUEUE\tROLE\tTICKS\tPUBLISHES\tAVG DEPTH\tLAST RATE\tMODES")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.1f\t%.1f/s\t%s\n",
				s.Alias, s.Queue, s.Role, s.Ticks, s.Publishes, s.AverageDepth, s.LastRate, formatModeCounts(s.TicksByMode))
		}
		_ = w.Flush()
		return ExitOK
	}
}

// formatModeCounts renders mode counts as "mode=n" pairs in name order.
func formatModeCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return "-"
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, " ")
}
