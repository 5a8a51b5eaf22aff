package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmorten/ciflow/internal/config"
	"github.com/kmorten/ciflow/internal/output"
	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/report"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows, their triggers, jobs, and steps",
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
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

	return renderList(cmd, cfg, data.provider, filtered.workflows, filtered.warnings)
}

func renderList(cmd *cobra.Command, cfg config.Config, providerName string, workflows []provider.Workflow, warnings []provider.Warning) error {
	if len(workflows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching jobs or steps")
		return nil
	}

	warningsList := collapseWarnings(warnings)

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		if err := renderer.RenderList(workflows); err != nil {
			return err
		}
	case config.FormatJSON:
		report := output.Report{
			Provider:  providerName,
			Workflows: workflows,
			Summary:   computeListSummary(workflows),
			Warnings:  warningsList,
		}
		renderer := output.NewJSON(cmd.OutOrStdout())
		if err := renderer.Render(report); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	if len(warningsList) > 0 && cfg.Format == config.FormatPretty {
		for _, msg := range warningsList {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
	}

	return nil
}

func computeListSummary(workflows []provider.Workflow) report.Summary {
	var jobs, steps int
	for _, wf := range workflows {
		jobs += len(wf.Jobs)
		for _, job := range wf.Jobs {
			steps += len(job.Steps)
		}
	}
	return report.Summary{
		TotalWorkflows: len(workflows),
		TotalJobs:      jobs,
		TotalSteps:     steps,
	}
}
