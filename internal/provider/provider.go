package provider

// Pipeline represents a parsed set of workflows from a provider.
type Pipeline struct {
	Provider  string     `json:"provider"`
	Workflows []Workflow `json:"workflows"`
	Warnings  []Warning  `json:"warnings"`
}

// Warning captures non-fatal issues encountered while parsing workflows.
type Warning struct {
	Workflow string `json:"workflow"`
	Job      string `json:"job"`
	Message  string `json:"message"`
}

// Workflow mirrors a CI workflow file.
type Workflow struct {
	Path     string            `json:"path"`
	Name     string            `json:"name"`
	On       []string          `json:"on,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Defaults Defaults          `json:"defaults"`
	Jobs     []Job             `json:"jobs"`
}

// Defaults capture shared configuration for jobs and steps.
type Defaults struct {
	RunShell         string `json:"run_shell,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

// Job represents a workflow job with resolved steps and dependencies.
type Job struct {
	Name     string            `json:"name"`
	RawID    string            `json:"id"`
	Needs    []string          `json:"needs,omitempty"`
	RunsOn   []string          `json:"runs_on,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Defaults Defaults          `json:"defaults"`
	Steps    []Step            `json:"steps"`
}

// Step represents an individual workflow step.
type Step struct {
	Name             string            `json:"name"`
	Run              string            `json:"run,omitempty"`
	Uses             string            `json:"uses,omitempty"`
	Shell            string            `json:"shell,omitempty"`
	WorkingDirectory string            `json:"working_directory,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
}

// Triggered reports whether the workflow declares the given trigger event.
// Workflows with no trigger list match every event.
func (w Workflow) Triggered(event string) bool {
	if event == "" || len(w.On) == 0 {
		return true
	}
	for _, e := range w.On {
		if e == event {
			return true
		}
	}
	return false
}

// Job returns the job with the given raw ID, if present.
func (w Workflow) Job(id string) (Job, bool) {
	for _, job := range w.Jobs {
		if job.RawID == id {
			return job, true
		}
	}
	return Job{}, false
}
