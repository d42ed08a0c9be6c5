package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// UIModeDecision captures whether to use the live UI.
type UIModeDecision struct {
	UseLive bool
	Warning string
}

// isTerminal reports whether a writer is a TTY.
var isTerminal = defaultIsTerminal

// ResolveUIMode determines whether to enable the live dashboard. Verbose
// logging always wins because log lines would tear the rendered view.
func ResolveUIMode(mode string, verbose bool, stdout io.Writer) (UIModeDecision, error) {
	if verbose {
		return UIModeDecision{UseLive: false}, nil
	}
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		normalized = "auto"
	}
	switch normalized {
	case "auto":
		return UIModeDecision{UseLive: isTerminal(stdout)}, nil
	case "live":
		if isTerminal(stdout) {
			return UIModeDecision{UseLive: true}, nil
		}
		return UIModeDecision{
			UseLive: false,
			Warning: "Live UI requested but stdout is not a TTY; falling back to plain output.",
		}, nil
	case "plain":
		return UIModeDecision{UseLive: false}, nil
	default:
		return UIModeDecision{}, fmt.Errorf("invalid ui mode %q (expected auto|live|plain)", mode)
	}
}

func defaultIsTerminal(stdout io.Writer) bool {
	if stdout == nil {
		return false
	}
	if file, ok := stdout.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	if fder, ok := stdout.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}
