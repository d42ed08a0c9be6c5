package cli

import (
	"flag"
	"fmt"
	"io"

	"swarmguard/internal/policy"
)

// runValidate builds the handler for the validate command.
func runValidate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		policyPath := flags.String("policy", "", "Path to policy file (default: $SWARMGUARD_POLICY or ./swarmguard.yaml)")
		if code, ok := parseFlags(cmd, flags, args, stdout, stderr); !ok {
			return code
		}

		resolved, err := ResolvePolicyPath(*policyPath)
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed:\n%v\n", err)
			return ExitError
		}
		doc, err := policy.Load(resolved)
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed:\n%s\n", err.Error())
			return ExitError
		}

		fmt.Fprintf(stdout, "Policy OK (%d queues)\n", len(doc.Queues))
		return ExitOK
	}
}
