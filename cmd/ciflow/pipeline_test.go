package main

import (
	"strings"
	"testing"

	"github.com/kmorten/ciflow/internal/provider"
)

func TestDetectToolchainWarningsSortedByChannel(t *testing.T) {
	t.Setenv("PATH", t.TempDir()) // no rustup on PATH, every probe fails

	wf := provider.Workflow{
		Path: ".github/workflows/ci.yml",
		Jobs: []provider.Job{
			{
				RawID: "matrix",
				Steps: []provider.Step{
					{Name: "Test nightly", Run: "cargo +nightly test"},
					{Name: "Test stable", Run: "cargo +stable test"},
					{Name: "Test msrv", Run: "cargo +1.70.0 test"},
				},
			},
		},
	}

	want := []string{"1.70.0", "nightly", "stable"}
	for i := 0; i < 5; i++ {
		warnings := detectToolchainWarnings(t.TempDir(), []provider.Workflow{wf})
		if len(warnings) != len(want) {
			t.Fatalf("expected %d warnings, got %d: %v", len(want), len(warnings), warnings)
		}
		for j, ch := range want {
			if !strings.Contains(warnings[j].Message, `"`+ch+`"`) {
				t.Fatalf("warning %d should name channel %q, got %q", j, ch, warnings[j].Message)
			}
			if warnings[j].Workflow != wf.Path {
				t.Fatalf("warning %d should name the workflow, got %q", j, warnings[j].Workflow)
			}
		}
	}
}
