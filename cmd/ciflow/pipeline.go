package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kmorten/ciflow/internal/config"
	"github.com/kmorten/ciflow/internal/discovery"
	"github.com/kmorten/ciflow/internal/provider"
	"github.com/kmorten/ciflow/internal/provider/filter"
	githubprovider "github.com/kmorten/ciflow/internal/provider/github"
	"github.com/kmorten/ciflow/internal/version"
)

// pipelineData bundles parsed workflows with warnings and metadata.
type pipelineData struct {
	provider  string
	workflows []provider.Workflow
	warnings  []provider.Warning
}

func loadPipeline(root string, cfg config.Config) (pipelineData, error) {
	providerName, err := resolveProvider(cfg.Provider)
	if err != nil {
		return pipelineData{}, err
	}

	paths, err := discovery.Workflows(root, cfg.Workflows)
	if err != nil {
		if errors.Is(err, discovery.ErrNoWorkflows) {
			return pipelineData{}, fmt.Errorf("no workflows found; specify --workflow to provide files")
		}
		return pipelineData{}, err
	}

	switch providerName {
	case config.ProviderGitHub:
		parser := githubprovider.NewParser(root)
		pipeline, err := parser.Parse(paths)
		if err != nil {
			return pipelineData{}, err
		}
		warnings := pipeline.Warnings
		if cfg.Warn.ToolchainMismatch {
			warnings = append(warnings, detectToolchainWarnings(root, pipeline.Workflows)...)
		}
		return pipelineData{provider: providerName, workflows: pipeline.Workflows, warnings: warnings}, nil
	default:
		return pipelineData{}, fmt.Errorf("provider %q not implemented", providerName)
	}
}

func applyFilters(data pipelineData, cfg config.Config) (pipelineData, error) {
	jobPatterns, err := filter.Compile(cfg.Jobs)
	if err != nil {
		return pipelineData{}, err
	}
	onlyPatterns, err := filter.Compile(cfg.OnlySteps)
	if err != nil {
		return pipelineData{}, err
	}
	skipPatterns, err := filter.Compile(cfg.SkipSteps)
	if err != nil {
		return pipelineData{}, err
	}

	workflows := filter.ByEvent(data.workflows, cfg.Event)
	workflows = filter.FilterWorkflows(workflows, jobPatterns, onlyPatterns, skipPatterns, !cfg.NoDeps)
	workflows, pruneWarnings := filter.PruneNeeds(workflows)

	warnings := append(data.warnings, pruneWarnings...)
	return pipelineData{provider: data.provider, workflows: workflows, warnings: warnings}, nil
}

// detectToolchainWarnings probes every toolchain channel the workflows pin
// via step scripts, plus the repository's own pin file, and reports channels
// that are missing locally.
func detectToolchainWarnings(root string, workflows []provider.Workflow) []provider.Warning {
	channels := make(map[string]string) // channel -> first referencing workflow
	if pinned := version.PinnedChannel(root); pinned != "" {
		channels[pinned] = "rust-toolchain"
	}
	for _, wf := range workflows {
		for _, job := range wf.Jobs {
			for _, step := range job.Steps {
				for _, ch := range version.ChannelsInScript(step.Run) {
					if _, ok := channels[ch]; !ok {
						channels[ch] = wf.Path
					}
				}
			}
		}
	}

	ordered := make([]string, 0, len(channels))
	for ch := range channels {
		ordered = append(ordered, ch)
	}
	sort.Strings(ordered)

	var warnings []provider.Warning
	for _, ch := range ordered {
		_, err := version.DetectToolchain(ch)
		if err == nil {
			continue
		}
		msg := fmt.Sprintf("toolchain channel %q is not installed", ch)
		if version.Missing(err) {
			msg = fmt.Sprintf("rustup not found; cannot verify toolchain channel %q", ch)
		}
		warnings = append(warnings, provider.Warning{Workflow: channels[ch], Message: msg})
	}
	return warnings
}

func collapseWarnings(warnings []provider.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, fmt.Sprintf("%s:%s: %s", w.Workflow, w.Job, w.Message))
	}
	return out
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, root, nil
}

func resolveProvider(input string) (string, error) {
	if input == "" || input == config.ProviderAuto {
		return config.ProviderGitHub, nil
	}
	switch input {
	case config.ProviderGitHub:
		return input, nil
	default:
		return "", fmt.Errorf("unsupported provider %q", input)
	}
}
