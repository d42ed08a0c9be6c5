package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPolicyFile is the policy looked up in the working directory.
const DefaultPolicyFile = "swarmguard.yaml"

// PolicyEnv names the environment variable overriding the policy path.
const PolicyEnv = "SWARMGUARD_POLICY"

// ResolvePolicyPath returns an absolute policy path from the flag value, the
// environment or the working directory, in that order.
func ResolvePolicyPath(policyPath string) (string, error) {
	path := strings.TrimSpace(policyPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(PolicyEnv))
	}
	if path == "" {
		path = DefaultPolicyFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve policy path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("policy not found: %w", err)
	}
	return abs, nil
}
