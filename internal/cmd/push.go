package cmd

import (
	"github.com/spf13/cobra"
)

var (
	pushEnv         string
	pushSkipPush    bool
	pushMetricsFile string
)

// pushCmd represents the push command.
var pushCmd = &cobra.Command{
	Use:   "push <config_file> <application> <image>",
	Short: "Render and push an already built image",
	Long: `Push renders the manifests of an application for an existing image and
pushes them to the scheduler. Nothing is built and checkouts are not synced.

<image> is the image path without registry, e.g.
"content-kairos-0f1e2d3c/v1.4.0". The registry from the environment file is
prepended. Hooks still run in $ROGER_DEPLOY_SOURCE_DIR/<repo>.`,
	Example: `  roger push content.json kairos content-kairos-0f1e2d3c/v1.4.0 -e stage
  roger push content.json kairos content-kairos-0f1e2d3c/v1.4.0 --skip-push`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: completeProjectArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), args[0], args[1], pipelineOptions{
			env:         pushEnv,
			image:       args[2],
			skipSync:    true,
			skipPush:    pushSkipPush,
			concurrency: 1,
			metricsFile: pushMetricsFile,
		})
	},
}

func init() {
	pushCmd.Flags().StringVarP(&pushEnv, "env", "e", "", "Environment to push to (default: $ROGER_ENV, then the environment file default)")
	pushCmd.Flags().BoolVar(&pushSkipPush, "skip-push", false, "Render and write manifests only")
	pushCmd.Flags().StringVar(&pushMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	rootCmd.AddCommand(pushCmd)
}
