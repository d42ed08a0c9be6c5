package cli

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"swarmguard/internal/guard"
	"swarmguard/internal/policy"
)

// planEntry is the yaml view of one resolved guard.
type planEntry struct {
	Alias        string  `yaml:"alias"`
	Queue        string  `yaml:"queue"`
	Producer     string  `yaml:"producer"`
	InitialRate  float64 `yaml:"initial_rate"`
	TargetDepth  int64   `yaml:"target_depth"`
	MinDepth     int64   `yaml:"min_depth"`
	MaxDepth     int64   `yaml:"max_depth"`
	SamplePeriod string  `yaml:"sample_period"`
	Window       int     `yaml:"moving_average_window"`
	MinRate      float64 `yaml:"min_rate_per_sec"`
	MaxRate      float64 `yaml:"max_rate_per_sec"`
	Prefill      string  `yaml:"prefill,omitempty"`
	Backpressure string  `yaml:"backpressure,omitempty"`
}

func runPlan(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		policyPath := flags.String("policy", "", "Path to policy file (default: $SWARMGUARD_POLICY or ./swarmguard.yaml)")
		format := flags.String("format", "table", "Output format (table|yaml)")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}
		outFormat := strings.ToLower(strings.TrimSpace(*format))
		if outFormat != "table" && outFormat != "yaml" {
			fmt.Fprintf(stderr, "invalid format %q (expected table|yaml)\n", *format)
			return ExitUsage
		}

		resolved, err := ResolvePolicyPath(*policyPath)
		if err != nil {
			fmt.Fprintf(stderr, "Plan failed: %v\n", err)
			return ExitError
		}
		doc, err := policy.Load(resolved)
		if err != nil {
			fmt.Fprintf(stderr, "Plan failed:\n%s\n", err.Error())
			return ExitError
		}
		settings, err := policy.Resolve(doc)
		if err != nil {
			fmt.Fprintf(stderr, "Plan failed:\n%s\n", err.Error())
			return ExitError
		}

		entries := make([]planEntry, 0, len(settings))
		for _, s := range settings {
			entries = append(entries, toPlanEntry(s))
		}
		if outFormat == "yaml" {
			out, err := yaml.Marshal(map[string]any{"swarm": doc.Swarm, "guards": entries})
			if err != nil {
				fmt.Fprintf(stderr, "Plan failed: %v\n", err)
				return ExitError
			}
			_, _ = stdout.Write(out)
			return ExitOK
		}
		fmt.Fprintf(stdout, "Swarm %s: %d guards\n", doc.Swarm, len(entries))
		fmt.Fprintln(stdout, renderPlanTable(entries))
		return ExitOK
	}
}

func toPlanEntry(s guard.Settings) planEntry {
	entry := planEntry{
		Alias:        s.QueueAlias,
		Queue:        s.Queue,
		Producer:     s.TargetRole,
		InitialRate:  s.InitialRate,
		TargetDepth:  s.TargetDepth,
		MinDepth:     s.MinDepth,
		MaxDepth:     s.MaxDepth,
		SamplePeriod: s.SamplePeriod.String(),
		Window:       s.MovingAverageWindow,
		MinRate:      s.Adjustment.MinRatePerSec,
		MaxRate:      s.Adjustment.MaxRatePerSec,
	}
	if s.Prefill.Enabled {
		entry.Prefill = fmt.Sprintf("+%g%% for %s", s.Prefill.LiftPct, s.Prefill.Lookahead)
		if !s.Prefill.AnticipateAt.IsZero() {
			entry.Prefill += " before " + s.Prefill.AnticipateAt.UTC().Format(time.RFC3339)
		}
	}
	if s.Backpressure.DownstreamQueue != "" && s.Backpressure.HighDepth > 0 {
		entry.Backpressure = fmt.Sprintf("%s >= %d (recover <= %d)",
			s.Backpressure.DownstreamQueue, s.Backpressure.HighDepth, s.Backpressure.RecoveryDepth)
	}
	return entry
}

func renderPlanTable(entries []planEntry) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ALIAS", "QUEUE", "PRODUCER", "RATE", "DEPTH", "SAMPLE", "PREFILL", "BACKPRESSURE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, e := range entries {
		t.Row(
			e.Alias,
			e.Queue,
			e.Producer,
			fmt.Sprintf("%s [%s..%s]", formatFloat(e.InitialRate), formatFloat(e.MinRate), formatFloat(e.MaxRate)),
			fmt.Sprintf("%d..%d (target %d)", e.MinDepth, e.MaxDepth, e.TargetDepth),
			fmt.Sprintf("%s x%d", e.SamplePeriod, e.Window),
			dash(e.Prefill),
			dash(e.Backpressure),
		)
	}
	return t.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
