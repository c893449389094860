package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/roger/internal/config"
	"github.com/cameronsjo/roger/internal/preflight"
	"github.com/cameronsjo/roger/internal/registry"
	"github.com/cameronsjo/roger/internal/ui"
)

var doctorEnv string

// doctorCmd represents the doctor command.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check settings, directories and daemons",
	Long: `Doctor checks that this host can run a deploy:

  - sh and docker are on PATH
  - the ROGER_* directories exist
  - the environment file loads and the environment has scheduler endpoints
  - the docker daemon answers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), doctorEnv)
	},
}

func init() {
	doctorCmd.Flags().StringVarP(&doctorEnv, "env", "e", "", "Environment to check (default: $ROGER_ENV, then the environment file default)")

	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(ctx context.Context, envFlag string) error {
	ui.Header("=== roger doctor ===")

	results := []preflight.Result{preflight.New().CheckBinaries()}

	dirs, err := config.DirsFromEnv(os.Getenv)
	if err != nil {
		results = append(results, preflight.Result{Errors: []string{err.Error()}})
	} else {
		results = append(results, preflight.CheckDirs(dirs))
		results = append(results, checkEnvironment(dirs, envFlag))
	}

	results = append(results, checkDocker(ctx))

	res := preflight.Merge(results...)
	for _, w := range res.Warnings {
		ui.Warning("%s", w)
	}
	for _, e := range res.Errors {
		ui.Error("%s", e)
	}
	if !res.OK() {
		return fmt.Errorf("%d problem(s) found", len(res.Errors))
	}

	ui.Success("Ready to deploy")
	return nil
}

func checkEnvironment(dirs config.Dirs, envFlag string) preflight.Result {
	var res preflight.Result

	settings, err := config.LoadSettings(dirs.Config)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	name, err := settings.SelectEnvironment(envFlag, os.Getenv(config.EnvEnvironment))
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	env, err := settings.Environment(name)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	var missing int
	for _, kind := range []config.SchedulerKind{config.KindApps, config.KindJobs} {
		if _, err := env.Endpoint(kind); err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			missing++
		}
	}
	if missing == 2 {
		res.Errors = append(res.Errors, fmt.Sprintf("environment %q has no scheduler endpoint", name))
	}
	if settings.Registry == "" {
		res.Errors = append(res.Errors, "environment file has no registry")
	}
	return res
}

func checkDocker(ctx context.Context) preflight.Result {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := registry.NewClient()
	if err == nil {
		defer client.Close()
		err = client.Ping(ctx)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("docker daemon did not answer in time")
		}
		return preflight.Result{Errors: []string{fmt.Sprintf("docker: %v", err)}}
	}
	return preflight.Result{}
}
