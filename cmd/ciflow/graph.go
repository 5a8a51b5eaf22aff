package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmorten/ciflow/internal/config"
	"github.com/kmorten/ciflow/internal/graph"
	"github.com/kmorten/ciflow/internal/output"
)

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show each workflow's job dependency graph in execution order",
		RunE:  runGraph,
	}
}

func runGraph(cmd *cobra.Command, args []string) error {
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

	if len(filtered.workflows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching jobs or steps")
		return nil
	}

	graphs := make([]output.GraphReport, 0, len(filtered.workflows))
	for _, wf := range filtered.workflows {
		jg, err := graph.Build(wf)
		if err != nil {
			return err
		}
		order, err := jg.TopoOrder()
		if err != nil {
			return err
		}
		graphs = append(graphs, output.GraphReport{
			Workflow: wf.Path,
			Order:    order,
			Edges:    jg.Edges(),
		})
	}

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		for i, wf := range filtered.workflows {
			if err := renderer.RenderGraph(wf, graphs[i].Order); err != nil {
				return err
			}
		}
	case config.FormatJSON:
		report := output.Report{
			Provider:  filtered.provider,
			Workflows: filtered.workflows,
			Graphs:    graphs,
			Summary:   computeListSummary(filtered.workflows),
			Warnings:  collapseWarnings(filtered.warnings),
		}
		renderer := output.NewJSON(cmd.OutOrStdout())
		if err := renderer.Render(report); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}

	return nil
}
