package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

func TestJSONRender(t *testing.T) {
	var buf bytes.Buffer
	r := Report{
		Provider:  "github",
		Workflows: []provider.Workflow{listWorkflow()},
		Graphs: []GraphReport{
			{
				Workflow: ".github/workflows/ci.yml",
				Order:    []string{"checkout", "stable"},
				Edges:    []graph.Edge{{From: "checkout", To: "stable"}},
			},
		},
		Jobs: []report.JobResult{
			{JobID: "checkout", Status: report.StatusPassed},
		},
		Summary:  report.Summary{TotalJobs: 1, JobsPassed: 1},
		Warnings: []string{"ci.yml: something"},
	}
	if err := NewJSON(&buf).Render(r); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, key := range []string{"provider", "workflows", "graphs", "jobs", "summary", "warnings"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, buf.String())
		}
	}

	graphs, ok := decoded["graphs"].([]any)
	if !ok || len(graphs) != 1 {
		t.Fatalf("expected one graph entry, got %v", decoded["graphs"])
	}
	entry := graphs[0].(map[string]any)
	if entry["workflow"] != ".github/workflows/ci.yml" {
		t.Errorf("unexpected graph workflow: %v", entry["workflow"])
	}
}

func TestJSONRenderOmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSON(&buf).Render(Report{Provider: "github"}); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, key := range []string{"graphs", "jobs", "warnings"} {
		if _, ok := decoded[key]; ok {
			t.Errorf("empty %q section should be omitted", key)
		}
	}
}
