package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
	headStyle = lipgloss.NewStyle().Bold(true)
)

// PrettyRenderer renders listings and execution results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderList renders workflows, their triggers, jobs, and steps in list mode.
func (p *PrettyRenderer) RenderList(workflows []provider.Workflow) error {
	for _, wf := range workflows {
		if _, err := fmt.Fprintf(p.out, "Workflow %s\n", headStyle.Render(decorateName(wf.Name, wf.Path))); err != nil {
			return err
		}
		if len(wf.On) > 0 {
			if _, err := fmt.Fprintf(p.out, "  %s\n", dimStyle.Render("on: "+strings.Join(wf.On, ", "))); err != nil {
				return err
			}
		}
		for _, job := range wf.Jobs {
			annot := jobAnnotations(job)
			if _, err := fmt.Fprintf(p.out, "  Job %s%s\n", job.Name, annot); err != nil {
				return err
			}
			for _, step := range job.Steps {
				if step.Run == "" {
					continue
				}
				label := step.Name
				if label == "" {
					label = step.Run
				}
				if _, err := fmt.Fprintf(p.out, "    • %s\n", label); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RenderGraph prints one workflow's job graph in topological order.
func (p *PrettyRenderer) RenderGraph(wf provider.Workflow, order []string) error {
	if _, err := fmt.Fprintf(p.out, "Workflow %s\n", headStyle.Render(decorateName(wf.Name, wf.Path))); err != nil {
		return err
	}
	for _, id := range order {
		job, ok := wf.Job(id)
		if !ok {
			continue
		}
		line := "  " + id
		if len(job.Needs) > 0 {
			line += dimStyle.Render(" ← " + strings.Join(job.Needs, ", "))
		}
		if _, err := fmt.Fprintln(p.out, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderResults shows execution outcomes grouped by workflow and job,
// followed by a summary line.
func (p *PrettyRenderer) RenderResults(jobs []report.JobResult, summary report.Summary) error {
	var currentWorkflow string
	var buffer bytes.Buffer

	flush := func() error {
		if buffer.Len() == 0 {
			return nil
		}
		if _, err := buffer.WriteTo(p.out); err != nil {
			return err
		}
		buffer.Reset()
		return nil
	}

	for _, job := range jobs {
		if job.WorkflowPath != currentWorkflow {
			if err := flush(); err != nil {
				return err
			}
			currentWorkflow = job.WorkflowPath
			fmt.Fprintf(&buffer, "Workflow %s\n", headStyle.Render(decorateName(job.WorkflowName, job.WorkflowPath)))
		}

		fmt.Fprintf(&buffer, "  %s Job %s (%s)\n", statusGlyph(job.Status), job.JobName, formatDuration(job.Duration))
		if job.Status == report.StatusSkipped && job.SkipReason != "" {
			fmt.Fprintf(&buffer, "      %s\n", dimStyle.Render(job.SkipReason))
		}

		for _, res := range job.Steps {
			label := res.StepName
			if label == "" {
				label = res.StepRun
			}
			fmt.Fprintf(&buffer, "    %s %s (%s)\n", statusGlyph(res.Status), label, formatDuration(res.Duration))
			if res.Status == report.StatusFailed && res.Stderr != "" {
				fmt.Fprintf(&buffer, "      stderr: %s\n", indent(res.Stderr, "      "))
			}
			if res.Status == report.StatusSkipped && res.Stderr != "" {
				fmt.Fprintf(&buffer, "      note: %s\n", indent(res.Stderr, "      "))
			}
			if res.DryRun {
				fmt.Fprintf(&buffer, "      command: %s\n", res.StepRun)
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(p.out, "SUMMARY: %d passed, %d failed, %d skipped; jobs: %d passed, %d failed, %d skipped (%s)\n",
		summary.Passed, summary.Failed, summary.Skipped,
		summary.JobsPassed, summary.JobsFailed, summary.JobsSkipped,
		formatDuration(summary.Duration))
	return err
}

func jobAnnotations(job provider.Job) string {
	var parts []string
	if len(job.Needs) > 0 {
		parts = append(parts, "needs: "+strings.Join(job.Needs, ", "))
	}
	if len(job.RunsOn) > 0 {
		parts = append(parts, "runs-on: "+strings.Join(job.RunsOn, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + dimStyle.Render("["+strings.Join(parts, "; ")+"]")
}

func statusGlyph(status string) string {
	switch status {
	case report.StatusPassed:
		return passStyle.Render("✔")
	case report.StatusFailed:
		return failStyle.Render("✘")
	case report.StatusSkipped:
		return skipStyle.Render("↷")
	default:
		return "?"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func decorateName(name, path string) string {
	if name == "" {
		return path
	}
	if path == "" || name == path {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, path)
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return strings.Join(lines, "\n"+prefix)
}
