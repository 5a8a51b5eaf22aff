package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/kmorten/ciflow/internal/ctxlog"
	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

// Options configure how the runner executes steps.
type Options struct {
	Root               string
	Stdout             io.Writer
	Stderr             io.Writer
	Verbose            bool
	DryRun             bool
	TailLines          int
	Env                []string
	Now                func() time.Time
	AllowPrivileged    bool
	PrivilegedPatterns []string
}

// Runner executes the steps of one job sequentially.
type Runner struct {
	opts Options
}

// New creates a runner with the supplied options.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.PrivilegedPatterns) == 0 {
		opts.PrivilegedPatterns = DefaultPrivilegedPatterns()
	}
	opts.PrivilegedPatterns = append([]string{}, opts.PrivilegedPatterns...)

	return &Runner{opts: opts}
}

// RunJob executes a job's run-steps in listed order. The first failing step
// fails the job; steps after it are recorded as skipped.
func (r *Runner) RunJob(ctx context.Context, wf provider.Workflow, job provider.Job) report.JobResult {
	logger := ctxlog.FromContext(ctx)

	jobResult := report.JobResult{
		WorkflowPath: wf.Path,
		WorkflowName: wf.Name,
		JobID:        job.RawID,
		JobName:      job.Name,
		Needs:        job.Needs,
		Status:       report.StatusPassed,
	}

	failed := false
	jobStart := r.opts.Now()

	for _, step := range job.Steps {
		if step.Run == "" || step.Uses != "" {
			continue
		}

		result := report.StepResult{
			WorkflowPath: wf.Path,
			WorkflowName: wf.Name,
			JobID:        job.RawID,
			JobName:      job.Name,
			StepName:     step.Name,
			StepRun:      step.Run,
			DryRun:       r.opts.DryRun,
		}

		if failed {
			result.Status = report.StatusSkipped
			result.Stderr = "previous step failed"
			jobResult.Steps = append(jobResult.Steps, result)
			continue
		}

		if msg, skip := r.privilegedSkip(step.Run); skip {
			result.Status = report.StatusSkipped
			result.Stderr = msg
			jobResult.Steps = append(jobResult.Steps, result)
			continue
		}

		if r.opts.DryRun {
			result.Status = report.StatusSkipped
			jobResult.Steps = append(jobResult.Steps, result)
			continue
		}

		logger.Debug("step starting", "job", job.RawID, "step", step.Name)
		start := r.opts.Now()
		err := r.runStep(ctx, wf, job, step, &result)
		result.Duration = r.opts.Now().Sub(start)
		result.DurationMS = result.Duration.Milliseconds()

		if err != nil {
			result.Status = report.StatusFailed
			result.Stdout = tailLines(result.Stdout, r.opts.TailLines)
			result.Stderr = tailLines(result.Stderr, r.opts.TailLines)
			failed = true
			logger.Error("step failed", "job", job.RawID, "step", step.Name, "exit_code", result.ExitCode)
		} else {
			result.Status = report.StatusPassed
			logger.Debug("step passed", "job", job.RawID, "step", step.Name, "duration", result.Duration)
		}

		jobResult.Steps = append(jobResult.Steps, result)
	}

	if failed {
		jobResult.Status = report.StatusFailed
	}
	jobResult.Duration = r.opts.Now().Sub(jobStart)
	jobResult.DurationMS = jobResult.Duration.Milliseconds()
	return jobResult
}

func (r *Runner) runStep(ctx context.Context, wf provider.Workflow, job provider.Job, step provider.Step, result *report.StepResult) error {
	env := mergeEnv(r.opts.Env, wf.Env, job.Env, step.Env)
	cmdArgs, err := buildCommand(step, job, wf)
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 127
		return err
	}

	workingDir, err := resolveWorkingDirectory(r.opts.Root, wf, job, step)
	if err != nil {
		result.Stderr = err.Error()
		result.ExitCode = 127
		return err
	}

	cmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	cmd.Dir = workingDir
	cmd.Env = env

	var stdoutBuf, stderrBuf strings.Builder
	if r.opts.Verbose {
		cmd.Stdout = io.MultiWriter(r.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(r.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	err = cmd.Run()
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.ExitCode = exitCode(err)
	return err
}

// buildCommand resolves the shell for a step (step > job default > workflow
// default > platform default) and wraps the script in its invocation.
func buildCommand(step provider.Step, job provider.Job, wf provider.Workflow) ([]string, error) {
	shell := strings.TrimSpace(step.Shell)
	if shell == "" {
		shell = strings.TrimSpace(job.Defaults.RunShell)
	}
	if shell == "" {
		shell = strings.TrimSpace(wf.Defaults.RunShell)
	}
	return commandArgs(shell, step.Run)
}

func commandArgs(shellSpec string, script string) ([]string, error) {
	if script == "" {
		return nil, errors.New("empty run script")
	}
	if shellSpec == "" {
		if runtime.GOOS == "windows" {
			return []string{"cmd", "/C", script}, nil
		}
		return []string{"bash", "-c", script}, nil
	}

	fields := strings.Fields(shellSpec)
	shell := fields[0]
	args := append([]string{}, fields[1:]...)
	base := strings.ToLower(filepath.Base(shell))

	switch base {
	case "bash", "zsh", "ksh", "fish", "sh":
		args = append(args, "-c", script)
	case "cmd", "cmd.exe":
		args = append(args, "/C", script)
	case "pwsh", "powershell", "powershell.exe":
		args = append(args, "-Command", script)
	case "python", "python3", "python.exe":
		args = append(args, "-c", script)
	default:
		args = append(args, script)
	}
	return append([]string{shell}, args...), nil
}

func resolveWorkingDirectory(root string, wf provider.Workflow, job provider.Job, step provider.Step) (string, error) {
	candidates := []string{step.WorkingDirectory, job.Defaults.WorkingDirectory, wf.Defaults.WorkingDirectory}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}

		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("working directory %q not found", candidate)
			}
			return "", fmt.Errorf("stat working directory %q: %w", candidate, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("working directory %q is not a directory", candidate)
		}
		return candidate, nil
	}
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	return root, nil
}

// mergeEnv layers env maps over the base process environment. Later overlays
// win: workflow < job < step.
func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}

func (r *Runner) privilegedSkip(script string) (string, bool) {
	if r.opts.AllowPrivileged {
		return "", false
	}
	for _, pattern := range r.opts.PrivilegedPatterns {
		if pattern == "" {
			continue
		}
		matched, err := regexp.MatchString(pattern, script)
		if err != nil {
			continue
		}
		if matched {
			return fmt.Sprintf("skipped privileged command matching pattern %q; set CIFLOW_ALLOW_PRIVILEGED=1 to run", pattern), true
		}
	}
	return "", false
}

// DefaultPrivilegedPatterns lists commands that are skipped unless privileged
// execution is explicitly allowed.
func DefaultPrivilegedPatterns() []string {
	return []string{
		`(?i)^sudo\b`,
		`(?i)\bapt-get\b`,
		`(?i)\bapt\b`,
		`(?i)\byum\b`,
		`(?i)\bdnf\b`,
		`(?i)\bzypper\b`,
		`(?i)\bpacman\b`,
		`(?i)\bbrew\b`,
		`(?i)\bchoco\b`,
		`(?i)\bwinget\b`,
		`(?i)\brustup\s+(self\s+)?update\b`,
		`(?i)\bnpm\s+install\s+-g`,
	}
}
