package report

import "time"

// Execution statuses shared by steps and jobs.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StepResult captures the outcome of a single step.
type StepResult struct {
	WorkflowPath string        `json:"workflow_path"`
	WorkflowName string        `json:"workflow_name"`
	JobID        string        `json:"job_id"`
	JobName      string        `json:"job_name"`
	StepName     string        `json:"step_name"`
	StepRun      string        `json:"step_run"`
	Status       string        `json:"status"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	Stdout       string        `json:"stdout,omitempty"`
	Stderr       string        `json:"stderr,omitempty"`
	ExitCode     int           `json:"exit_code"`
	DryRun       bool          `json:"dry_run"`
}

// JobResult captures the outcome of a job, including its step results.
// A job is skipped when a prerequisite named in its needs failed.
type JobResult struct {
	WorkflowPath string        `json:"workflow_path"`
	WorkflowName string        `json:"workflow_name"`
	JobID        string        `json:"job_id"`
	JobName      string        `json:"job_name"`
	Needs        []string      `json:"needs,omitempty"`
	Status       string        `json:"status"`
	SkipReason   string        `json:"skip_reason,omitempty"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	Steps        []StepResult  `json:"steps"`
}

// Failed reports whether any step in the job failed.
func (j JobResult) Failed() bool {
	return j.Status == StatusFailed
}

// Summary aggregates pipeline execution results.
type Summary struct {
	TotalWorkflows int           `json:"total_workflows"`
	TotalJobs      int           `json:"total_jobs"`
	TotalSteps     int           `json:"total_steps"`
	Passed         int           `json:"passed"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	JobsPassed     int           `json:"jobs_passed"`
	JobsFailed     int           `json:"jobs_failed"`
	JobsSkipped    int           `json:"jobs_skipped"`
	Duration       time.Duration `json:"-"`
	DurationMS     int64         `json:"duration_ms"`
	ExitCode       int           `json:"exit_code"`
}

// AddJob folds a job result into the summary counters.
func (s *Summary) AddJob(job JobResult) {
	switch job.Status {
	case StatusPassed:
		s.JobsPassed++
	case StatusFailed:
		s.JobsFailed++
		s.ExitCode = 1
	case StatusSkipped:
		s.JobsSkipped++
	}
	for _, step := range job.Steps {
		s.TotalSteps++
		switch step.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
			s.ExitCode = 1
		case StatusSkipped:
			s.Skipped++
		}
		s.Duration += step.Duration
	}
	s.DurationMS = s.Duration.Milliseconds()
}
