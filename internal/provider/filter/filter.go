package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/provider"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values. Strings
// wrapped in slashes compile as regular expressions; anything else matches
// as a case-insensitive substring.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
			expr := raw[1 : len(raw)-1]
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// ByEvent keeps workflows whose trigger list declares the given event.
// An empty event keeps everything.
func ByEvent(workflows []provider.Workflow, event string) []provider.Workflow {
	if event == "" {
		return workflows
	}
	result := make([]provider.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		if wf.Triggered(event) {
			result = append(result, wf)
		}
	}
	return result
}

// FilterWorkflows applies job and step filters to workflows, returning a new
// slice with matches. When withNeeds is true, a selected job pulls in its
// transitive prerequisites so its needs stay satisfiable.
func FilterWorkflows(workflows []provider.Workflow, jobPatterns, onlyPatterns, skipPatterns []Pattern, withNeeds bool) []provider.Workflow {
	if len(workflows) == 0 {
		return nil
	}

	result := make([]provider.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		keep := selectedJobs(wf, jobPatterns, withNeeds)

		filteredJobs := make([]provider.Job, 0, len(wf.Jobs))
		for _, job := range wf.Jobs {
			if keep != nil {
				if _, ok := keep[job.RawID]; !ok {
					continue
				}
			}
			filteredSteps := filterSteps(job.Steps, onlyPatterns, skipPatterns)
			if len(filteredSteps) == 0 {
				continue
			}
			jobCopy := job
			jobCopy.Steps = filteredSteps
			filteredJobs = append(filteredJobs, jobCopy)
		}
		if len(filteredJobs) == 0 {
			continue
		}
		wfCopy := wf
		wfCopy.Jobs = filteredJobs
		result = append(result, wfCopy)
	}
	return result
}

// selectedJobs resolves job patterns to a job-ID set, nil meaning all jobs.
func selectedJobs(wf provider.Workflow, jobPatterns []Pattern, withNeeds bool) map[string]struct{} {
	if len(jobPatterns) == 0 {
		return nil
	}
	selected := make(map[string]struct{})
	for _, job := range wf.Jobs {
		if matchesJob(job, jobPatterns) {
			selected[job.RawID] = struct{}{}
		}
	}
	if withNeeds {
		return graph.Closure(wf, selected)
	}
	return selected
}

// PruneNeeds drops needs references to jobs that are no longer present in
// the workflow, reporting each dropped reference as a warning. Remaining
// edges between surviving jobs are preserved.
func PruneNeeds(workflows []provider.Workflow) ([]provider.Workflow, []provider.Warning) {
	var warnings []provider.Warning
	result := make([]provider.Workflow, 0, len(workflows))

	for _, wf := range workflows {
		present := make(map[string]struct{}, len(wf.Jobs))
		for _, job := range wf.Jobs {
			present[job.RawID] = struct{}{}
		}

		jobs := make([]provider.Job, 0, len(wf.Jobs))
		for _, job := range wf.Jobs {
			kept := make([]string, 0, len(job.Needs))
			for _, need := range job.Needs {
				if _, ok := present[need]; ok {
					kept = append(kept, need)
					continue
				}
				warnings = append(warnings, provider.Warning{
					Workflow: wf.Path,
					Job:      job.RawID,
					Message:  fmt.Sprintf("needs %q treated as satisfied: job was filtered out or has no runnable steps", need),
				})
			}
			jobCopy := job
			jobCopy.Needs = kept
			jobs = append(jobs, jobCopy)
		}
		wfCopy := wf
		wfCopy.Jobs = jobs
		result = append(result, wfCopy)
	}

	return result, warnings
}

func matchesJob(job provider.Job, patterns []Pattern) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern.Match(job.Name) || pattern.Match(job.RawID) {
			return true
		}
	}
	return false
}

// filterSteps drops steps that carry neither a run script nor an action
// reference. Action-only steps stay so their jobs remain visible in listings;
// the runner excludes them from execution.
func filterSteps(steps []provider.Step, onlyPatterns, skipPatterns []Pattern) []provider.Step {
	if len(steps) == 0 {
		return nil
	}
	result := make([]provider.Step, 0, len(steps))
	for _, step := range steps {
		if step.Run == "" && step.Uses == "" {
			continue
		}
		if len(onlyPatterns) > 0 && !matchesStep(step, onlyPatterns) {
			continue
		}
		if len(skipPatterns) > 0 && matchesStep(step, skipPatterns) {
			continue
		}
		result = append(result, step)
	}
	return result
}

func matchesStep(step provider.Step, patterns []Pattern) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern.Match(step.Name) || pattern.Match(step.Run) {
			return true
		}
	}
	return false
}
