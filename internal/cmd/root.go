// Package cmd provides the CLI commands for roger.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/roger/internal/log"
	"github.com/cameronsjo/roger/internal/ui"
)

// Version is the roger release, overridden at build time with -ldflags.
var Version = "0.4.0"

var (
	logLevel string
	logJSON  bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "roger",
	Short: "Version, render and push containerized applications",
	Long: `roger - release tooling for scheduler-managed containers

Resolves the next release version of an application from the image
registry, renders its per-environment manifests from layered variables,
merges secrets, runs lifecycle hooks around the build and the push, and
pushes the manifests to the apps or jobs scheduler.

COMMANDS
  deploy <config> <app|all>        Full pipeline: sync, version, build, render, push
  push <config> <app|all> <image>  Render and push an already built image
  doctor                           Check settings, directories and daemons
  version                          Show version information

ENVIRONMENT
  ROGER_CONFIG_DIR         Environment file and project files (required)
  ROGER_TEMPLATES_DIR      Shared manifest templates (required)
  ROGER_COMPONENTS_DIR     Rendered manifest output (required)
  ROGER_SECRETS_DIR        Secret files per environment (required)
  ROGER_DEPLOY_SOURCE_DIR  Application checkouts (default: temporary dir)
  ROGER_ENV                Environment used when -e is not given`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.DisableColorUnlessTerminal()
		log.Init(log.Config{
			Level:      log.ParseLevel(logLevel),
			JSONOutput: logJSON,
			Output:     cmd.ErrOrStderr(),
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")

	rootCmd.SetVersionTemplate("roger version {{.Version}}\n")
}
