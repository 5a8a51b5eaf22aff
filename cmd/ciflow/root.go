package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ciflow",
		Short:         "ciflow executes CI workflow job graphs locally",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("provider", "", "workflow provider to use (auto|github)")
	persistent.StringArray("workflow", nil, "workflow file to include")
	persistent.StringArray("job", nil, "job filter (repeatable)")
	persistent.String("event", "", "only include workflows triggered by this event (push, pull_request, ...)")
	persistent.StringArray("only-step", nil, "include only matching steps")
	persistent.StringArray("skip-step", nil, "exclude matching steps")
	persistent.Bool("dry-run", false, "print commands without executing them")
	persistent.BoolP("verbose", "v", false, "stream command output in real time")
	persistent.Bool("no-deps", false, "do not pull in prerequisite jobs of filtered jobs")
	persistent.Int("max-parallel", 0, "bound on concurrently running jobs (0 = unbounded)")
	persistent.String("format", "pretty", "output format (pretty|json)")
	persistent.String("log-level", "", "diagnostic log level (trace|debug|info|warn|error|fatal)")
	persistent.String("log-stream", "", "diagnostic log destination (stdout|file|both|neither)")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newGraphCmd())

	return cmd
}
