package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cameronsjo/roger/internal/version"
)

var (
	deployEnv         string
	deployBranch      string
	deploySkipBuild   bool
	deploySkipPush    bool
	deploySkipSync    bool
	deployMajor       bool
	deployPatch       bool
	deployConcurrency int
	deployMetricsFile string
	deployDepth       int
)

// deployCmd represents the deploy command.
var deployCmd = &cobra.Command{
	Use:   "deploy <config_file> <application>",
	Short: "Version, build, render and push applications",
	Long: `Deploy runs the full release pipeline for one application, or for every
application in the project when <application> is "all":

1. Acquire the environment lock
2. Sync the application checkout from its repository
3. Resolve the next version from the registry (minor by default)
4. Render each container manifest and merge secrets
5. Write manifests to $ROGER_COMPONENTS_DIR/<env>/
6. pre_build hook, docker build and push, post_build hook
7. pre_push hook, push manifests to the scheduler, post_push hook
8. Record the outcome

A failing stage aborts the remaining stages of that application only.`,
	Example: `  roger deploy content.json kairos -e dev
  roger deploy content.json all -e prod --concurrency 4
  roger deploy content.json kairos --skip-build --metrics-file /var/lib/node_exporter/roger.prom`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeProjectArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), args[0], args[1], pipelineOptions{
			env:         deployEnv,
			branch:      deployBranch,
			increment:   version.IncrementFromFlags(deployMajor, deployPatch),
			skipBuild:   deploySkipBuild,
			skipPush:    deploySkipPush,
			skipSync:    deploySkipSync,
			concurrency: deployConcurrency,
			metricsFile: deployMetricsFile,
			depth:       deployDepth,
		})
	},
}

func init() {
	deployCmd.Flags().StringVarP(&deployEnv, "env", "e", "", "Environment to deploy to (default: $ROGER_ENV, then the environment file default)")
	deployCmd.Flags().StringVarP(&deployBranch, "branch", "b", "", "Branch to deploy (default: master)")
	deployCmd.Flags().BoolVarP(&deploySkipBuild, "skip-build", "s", false, "Reuse the deployed image instead of building a new one")
	deployCmd.Flags().BoolVar(&deploySkipPush, "skip-push", false, "Render and write manifests without pushing them")
	deployCmd.Flags().BoolVar(&deploySkipSync, "skip-sync", false, "Use checkouts in $ROGER_DEPLOY_SOURCE_DIR as they are")
	deployCmd.Flags().BoolVarP(&deployMajor, "incr-major", "M", false, "Increment the major version")
	deployCmd.Flags().BoolVarP(&deployPatch, "incr-patch", "p", false, "Increment the patch version")
	deployCmd.Flags().IntVar(&deployConcurrency, "concurrency", 1, "Applications deployed in parallel with \"all\"")
	deployCmd.Flags().StringVar(&deployMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	deployCmd.Flags().IntVar(&deployDepth, "depth", 0, "Clone and fetch only this many commits (0 for full history)")

	rootCmd.AddCommand(deployCmd)
}
