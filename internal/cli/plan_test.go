package cli

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestPlanCommandTable(t *testing.T) {
	path := writePolicy(t, validPolicy)

	var out, errOut bytes.Buffer
	code := Run([]string{"plan", "--policy", path}, &out, &errOut)
	if code != ExitOK {
		t.Fatalf("expected exit %d, got %d (stderr %q)", ExitOK, code, errOut.String())
	}
	output := out.String()
	for _, want := range []string{"Swarm demo: 2 guards", "ph.demo.work", "ph.demo.final", "generator", "ph.demo.final >= 1000"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestPlanCommandYAML(t *testing.T) {
	path := writePolicy(t, validPolicy)

	var out, errOut bytes.Buffer
	code := Run([]string{"plan", "--policy", path, "--format", "yaml"}, &out, &errOut)
	if code != ExitOK {
		t.Fatalf("expected exit %d, got %d (stderr %q)", ExitOK, code, errOut.String())
	}
	var decoded struct {
		Swarm  string      `yaml:"swarm"`
		Guards []planEntry `yaml:"guards"`
	}
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Swarm != "demo" || len(decoded.Guards) != 2 {
		t.Fatalf("unexpected plan %+v", decoded)
	}
	final, work := decoded.Guards[0], decoded.Guards[1]
	if final.Alias != "final" || final.Producer != "moderator" || final.Backpressure != "" {
		t.Fatalf("unexpected final entry %+v", final)
	}
	if work.TargetDepth != 200 || work.SamplePeriod != "2s" || work.MaxRate != 500 {
		t.Fatalf("unexpected work entry %+v", work)
	}
	if !strings.HasPrefix(work.Prefill, "+25% for 30s") {
		t.Fatalf("unexpected prefill %q", work.Prefill)
	}
}

func TestPlanCommandRejectsFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Run([]string{"plan", "--format", "json"}, &out, &errOut); code != ExitUsage {
		t.Fatalf("expected exit %d, got %d", ExitUsage, code)
	}
}
