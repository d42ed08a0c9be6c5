package cli

import (
	"os"
	"path/filepath"
	"testing"
)

const validPolicy = `version: 1
swarm: demo
defaults:
  sample_period: 2s
  adjustment:
    min_rate_per_sec: 1
    max_rate_per_sec: 500
queues:
  work:
    producer: generator
    initial_rate: 40
    min_depth: 100
    max_depth: 300
    prefill:
      enabled: true
      lookahead: 30s
      lift_pct: 25
    backpressure:
      downstream: final
      high_depth: 1000
      recovery_depth: 400
  final:
    producer: moderator
    initial_rate: 20
    max_depth: 1000
`

// writePolicy writes content to a policy file in a temp dir and returns its path.
func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarmguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}
