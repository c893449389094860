package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cameronsjo/roger/internal/config"
	"github.com/cameronsjo/roger/internal/deploy"
	"github.com/cameronsjo/roger/internal/lock"
	"github.com/cameronsjo/roger/internal/log"
	"github.com/cameronsjo/roger/internal/notify"
	"github.com/cameronsjo/roger/internal/registry"
	"github.com/cameronsjo/roger/internal/source"
	"github.com/cameronsjo/roger/internal/telemetry"
	"github.com/cameronsjo/roger/internal/ui"
	"github.com/cameronsjo/roger/internal/version"
)

// pipelineOptions are the flags shared by deploy and push.
type pipelineOptions struct {
	env         string
	branch      string
	increment   version.Increment
	skipBuild   bool
	skipPush    bool
	skipSync    bool
	image       string
	concurrency int
	metricsFile string
	// depth limits clones and fetches; 0 is full history.
	depth int
}

// runPipeline loads the configuration, deploys the selected applications
// under the environment lock and reports the outcome.
func runPipeline(ctx context.Context, configFile, application string, opts pipelineOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithComponent("cmd")

	ui.Step(1, "Loading configuration")
	dirs, err := config.DirsFromEnv(os.Getenv)
	if err != nil {
		return err
	}
	settings, err := config.LoadSettings(dirs.Config)
	if err != nil {
		return err
	}
	envName, err := settings.SelectEnvironment(opts.env, os.Getenv(config.EnvEnvironment))
	if err != nil {
		return err
	}
	project, err := config.LoadProject(dirs.Config, configFile)
	if err != nil {
		return err
	}
	apps, err := project.Select(application)
	if err != nil {
		return err
	}

	workDir := dirs.Source
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "roger-")
		if err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		ui.Info("%s is not set, using temporary dir %s", config.EnvSourceDir, tmp)
		workDir = tmp
	}

	git := source.New(source.WithDepth(opts.depth))
	user := git.User()

	// Resolving a new version needs the registry; explicit images do not.
	var images version.ImageLister = noImages{}
	if opts.image == "" && !opts.skipBuild {
		reg, err := registry.NewClient()
		if err != nil {
			return fmt.Errorf("connect to docker: %w", err)
		}
		defer reg.Close()
		images = reg
	}
	resolver := version.NewResolver(images, git)

	prom := telemetry.NewPrometheusRecorder()
	memory := &telemetry.MemoryRecorder{}

	notifier := notify.NewManager()
	notifier.AddProvider(notify.NewDiscordProvider(project.Notifications.Webhook, project.Notifications.Username))

	deployOpts := []deploy.Option{
		deploy.WithSourceSyncer(git),
		deploy.WithRecorder(telemetry.Multi{memory, prom}),
		deploy.WithUser(user),
	}
	if notifier.HasProviders() {
		logger.Debug().Strs("providers", notifier.ProviderNames()).Msg("Notifications enabled")
		deployOpts = append(deployOpts, deploy.WithNotifier(notifier))
	}

	deployer, err := deploy.NewDeployer(deploy.Config{
		Settings:  settings,
		Project:   project,
		Dirs:      dirs,
		WorkDir:   workDir,
		Env:       envName,
		Branch:    opts.branch,
		Increment: opts.increment,
		SkipBuild: opts.skipBuild,
		SkipPush:  opts.skipPush,
		SkipSync:  opts.skipSync,
		Image:     opts.image,
	}, resolver, deployOpts...)
	if err != nil {
		return err
	}

	ui.Header("=== %s / %s → %s ===", project.Name, application, envName)
	ui.Step(2, "Deploying %d application(s)", len(apps))

	var results []*deploy.Result
	runErr := lock.WithLock(dirs.Components, "deploy-"+envName, func() error {
		var err error
		results, err = deployer.RunBatch(ctx, apps, opts.concurrency)
		return err
	})

	ui.Step(3, "Reporting")
	report(results, opts.branch, user, envName)
	for _, r := range memory.Records() {
		logger.Debug().Msg(r.String())
	}

	if err := exportMetrics(ctx, prom, settings, envName, opts.metricsFile); err != nil {
		ui.Warning("%v", err)
	}

	return runErr
}

// report prints one summary line per application.
func report(results []*deploy.Result, branch, user, env string) {
	if branch == "" {
		branch = deploy.DefaultBranch
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil {
			ui.Outcome(false, r.App, fmt.Sprintf("%s: %v", r.State, r.Err))
			continue
		}
		msg := notify.Deploy{
			User:     user,
			App:      r.App,
			Env:      env,
			Branch:   branch,
			Image:    r.Image,
			Duration: r.Duration.Round(10 * time.Millisecond),
		}
		ui.Outcome(true, r.App, msg.Text())
	}
}

// exportMetrics writes the textfile and pushes to the environment's
// telemetry endpoint when it is a Pushgateway URL.
func exportMetrics(ctx context.Context, prom *telemetry.PrometheusRecorder, settings *config.Settings, envName, metricsFile string) error {
	if metricsFile != "" {
		if err := prom.WriteTextfile(metricsFile); err != nil {
			return err
		}
	}

	env, err := settings.Environment(envName)
	if err != nil {
		return err
	}
	endpoint := settings.TelemetryEndpoint(env)
	if endpoint == "" {
		return nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		logger := log.WithComponent("cmd")
		logger.Debug().Str("endpoint", endpoint).Msg("Telemetry endpoint is not a Pushgateway URL, skipping push")
		return nil
	}
	return prom.Push(ctx, endpoint)
}

// noImages is the lister used when no registry lookup is needed.
type noImages struct{}

func (noImages) ListImages(context.Context, string) ([]string, error) {
	return nil, nil
}
