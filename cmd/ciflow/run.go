package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmorten/ciflow/internal/config"
	"github.com/kmorten/ciflow/internal/ctxlog"
	"github.com/kmorten/ciflow/internal/eventlog"
	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/output"
	"github.com/kmorten/ciflow/internal/report"
	"github.com/kmorten/ciflow/internal/runner"
	"github.com/kmorten/ciflow/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute workflow jobs locally, honoring their dependency graph",
		RunE:  runExecute,
	}
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := loadPipeline(root, cfg)
	if err != nil {
		return err
	}

	filtered, err := applyFilters(data, cfg)
	if err != nil {
		return err
	}

	sink, err := newEventLog(cfg, root)
	if err != nil {
		return err
	}
	defer sink.Close()
	ctx := ctxlog.WithLogger(cmd.Context(), slog.New(sink.Handler()))

	execRunner := runner.New(runner.Options{
		Root:               root,
		Stdout:             cmd.OutOrStdout(),
		Stderr:             cmd.ErrOrStderr(),
		Verbose:            cfg.Verbose,
		DryRun:             cfg.DryRun,
		TailLines:          20,
		AllowPrivileged:    os.Getenv("CIFLOW_ALLOW_PRIVILEGED") == "1",
		PrivilegedPatterns: cfg.PrivilegedCommandPatterns,
	})
	sched := scheduler.New(execRunner, scheduler.Options{MaxParallel: cfg.MaxParallel})

	summary := report.Summary{TotalWorkflows: len(filtered.workflows)}
	var jobs []report.JobResult

	for _, wf := range filtered.workflows {
		jg, err := graph.Build(wf)
		if err != nil {
			return err
		}
		results, err := sched.RunWorkflow(ctx, wf, jg)
		if err != nil {
			return err
		}
		summary.TotalJobs += len(wf.Jobs)
		for _, res := range results {
			summary.AddJob(res)
			jobs = append(jobs, res)
		}
	}

	if err := sink.Flush(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: flush event log: %v\n", err)
	}

	if summary.TotalSteps == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching jobs or steps")
		return nil
	}

	warnings := collapseWarnings(filtered.warnings)

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		if err := renderer.RenderResults(jobs, summary); err != nil {
			return err
		}
		for _, msg := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
	case config.FormatJSON:
		jsonReport := output.Report{
			Provider:  filtered.provider,
			Workflows: filtered.workflows,
			Jobs:      jobs,
			Summary:   summary,
			Warnings:  warnings,
		}
		renderer := output.NewJSON(cmd.OutOrStdout())
		if err := renderer.Render(jsonReport); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	if summary.ExitCode != 0 {
		return fmt.Errorf("one or more steps failed")
	}

	return nil
}

func newEventLog(cfg config.Config, root string) (*eventlog.Sink, error) {
	level, err := eventlog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	stream, err := eventlog.ParseStream(cfg.Log.Stream)
	if err != nil {
		return nil, err
	}
	dir := cfg.Log.Dir
	if dir == "" {
		dir = root
	}
	return eventlog.New(eventlog.Options{
		Prefix: cfg.Log.Prefix,
		Dir:    dir,
		Level:  level,
		Stream: stream,
	}), nil
}
