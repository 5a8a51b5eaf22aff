package output

import (
	"encoding/json"
	"io"

	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// GraphReport captures one workflow's job graph.
type GraphReport struct {
	Workflow string       `json:"workflow"`
	Order    []string     `json:"order"`
	Edges    []graph.Edge `json:"edges"`
}

// Report captures the JSON output schema.
type Report struct {
	Provider  string              `json:"provider"`
	Workflows []provider.Workflow `json:"workflows"`
	Graphs    []GraphReport       `json:"graphs,omitempty"`
	Jobs      []report.JobResult  `json:"jobs,omitempty"`
	Summary   report.Summary      `json:"summary"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
