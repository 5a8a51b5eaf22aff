package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

func listWorkflow() provider.Workflow {
	return provider.Workflow{
		Name: "CI",
		Path: ".github/workflows/ci.yml",
		On:   []string{"push", "pull_request"},
		Jobs: []provider.Job{
			{
				RawID:  "checkout",
				Name:   "checkout",
				RunsOn: []string{"self-hosted"},
				Steps: []provider.Step{
					{Name: "Fetch", Uses: "actions/checkout@v2"},
					{Name: "Refresh lockfile", Run: "cargo update"},
				},
			},
			{
				RawID: "stable",
				Name:  "stable",
				Needs: []string{"checkout"},
				Steps: []provider.Step{
					{Run: "cargo build --verbose"},
				},
			},
		},
	}
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPretty(&buf).RenderList([]provider.Workflow{listWorkflow()}); err != nil {
		t.Fatalf("RenderList returned error: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"Workflow",
		"CI",
		"on: push, pull_request",
		"Job checkout",
		"runs-on: self-hosted",
		"Job stable",
		"needs: checkout",
		"Refresh lockfile",
		"cargo build --verbose", // unnamed steps fall back to the script
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Fetch") {
		t.Errorf("uses-only steps must not be listed:\n%s", got)
	}
}

func TestRenderGraph(t *testing.T) {
	var buf bytes.Buffer
	wf := listWorkflow()
	if err := NewPretty(&buf).RenderGraph(wf, []string{"checkout", "stable"}); err != nil {
		t.Fatalf("RenderGraph returned error: %v", err)
	}
	got := buf.String()

	checkoutAt := strings.Index(got, "checkout")
	stableAt := strings.Index(got, "stable")
	if checkoutAt < 0 || stableAt < 0 || stableAt < checkoutAt {
		t.Fatalf("jobs must appear in the given order:\n%s", got)
	}
	if !strings.Contains(got, "←") {
		t.Errorf("dependent jobs should show a needs arrow:\n%s", got)
	}
}

func TestRenderResults(t *testing.T) {
	jobs := []report.JobResult{
		{
			WorkflowName: "CI",
			WorkflowPath: ".github/workflows/ci.yml",
			JobID:        "checkout",
			JobName:      "checkout",
			Status:       report.StatusPassed,
			Duration:     80 * time.Millisecond,
			Steps: []report.StepResult{
				{StepName: "Refresh lockfile", StepRun: "cargo update", Status: report.StatusPassed, Duration: 80 * time.Millisecond},
			},
		},
		{
			WorkflowName: "CI",
			WorkflowPath: ".github/workflows/ci.yml",
			JobID:        "stable",
			JobName:      "stable",
			Status:       report.StatusFailed,
			Duration:     1500 * time.Millisecond,
			Steps: []report.StepResult{
				{StepName: "Build", StepRun: "cargo build", Status: report.StatusFailed, ExitCode: 101, Stderr: "error[E0308]: mismatched types", Duration: 1500 * time.Millisecond},
				{StepName: "Test", StepRun: "cargo test", Status: report.StatusSkipped, Stderr: "previous step failed"},
			},
		},
		{
			WorkflowName: "CI",
			WorkflowPath: ".github/workflows/ci.yml",
			JobID:        "nightly",
			JobName:      "nightly",
			Status:       report.StatusSkipped,
			SkipReason:   `dependency "stable" failed`,
		},
	}
	summary := report.Summary{
		Passed: 1, Failed: 1, Skipped: 1,
		JobsPassed: 1, JobsFailed: 1, JobsSkipped: 1,
		Duration: 1580 * time.Millisecond,
		ExitCode: 1,
	}

	var buf bytes.Buffer
	if err := NewPretty(&buf).RenderResults(jobs, summary); err != nil {
		t.Fatalf("RenderResults returned error: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"Job checkout",
		"Job stable",
		"Job nightly",
		"stderr: error[E0308]: mismatched types",
		"note: previous step failed",
		`dependency "stable" failed`,
		"SUMMARY: 1 passed, 1 failed, 1 skipped; jobs: 1 passed, 1 failed, 1 skipped (1.6s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "Workflow") != 1 {
		t.Errorf("jobs from one workflow share a single header:\n%s", got)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(250 * time.Millisecond); got != "250ms" {
		t.Errorf("got %q", got)
	}
	if got := formatDuration(2300 * time.Millisecond); got != "2.3s" {
		t.Errorf("got %q", got)
	}
}

func TestDecorateName(t *testing.T) {
	if got := decorateName("", "ci.yml"); got != "ci.yml" {
		t.Errorf("got %q", got)
	}
	if got := decorateName("CI", "ci.yml"); got != "CI (ci.yml)" {
		t.Errorf("got %q", got)
	}
	if got := decorateName("ci.yml", "ci.yml"); got != "ci.yml" {
		t.Errorf("got %q", got)
	}
}
