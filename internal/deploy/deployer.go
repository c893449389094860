// Package deploy runs the per-application release pipeline: resolve the
// version, render and write manifests, run lifecycle hooks around the build
// and the push, then record the outcome.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/distribution/reference"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cameronsjo/roger/internal/build"
	"github.com/cameronsjo/roger/internal/config"
	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/hooks"
	"github.com/cameronsjo/roger/internal/log"
	"github.com/cameronsjo/roger/internal/notify"
	"github.com/cameronsjo/roger/internal/render"
	"github.com/cameronsjo/roger/internal/scheduler"
	"github.com/cameronsjo/roger/internal/secrets"
	"github.com/cameronsjo/roger/internal/telemetry"
	"github.com/cameronsjo/roger/internal/version"
)

// DefaultBranch is deployed when no branch is given.
const DefaultBranch = "master"

// StageConfigure names failures selecting the scheduler.
const StageConfigure = "configure"

// Config holds the settings of one deploy run.
type Config struct {
	Settings *config.Settings
	Project  *config.Project
	Dirs     config.Dirs

	// WorkDir holds application checkouts, one directory per repository.
	WorkDir string

	Env       string
	Branch    string
	Increment version.Increment

	// SkipBuild reuses the deployed image instead of building a new one.
	SkipBuild bool
	// SkipPush renders and writes manifests without pushing them.
	SkipPush bool
	// SkipSync uses the checkouts in WorkDir as they are.
	SkipSync bool

	// Image deploys an already built image path (without registry) instead
	// of resolving a new version. Nothing is built.
	Image string
}

// needsScheduler reports whether the run pushes or reads live scheduler
// state to reuse the deployed version.
func (c Config) needsScheduler() bool {
	return !c.SkipPush || (c.SkipBuild && c.Image == "")
}

// Result describes one application deploy.
type Result struct {
	App   string
	RunID string
	Tag   version.Tag
	// Image is the full image reference, registry included.
	Image string
	State State
	// Files are the written manifest paths.
	Files    []string
	Pushes   []scheduler.PushResult
	Duration time.Duration
	Err      error
}

// Deployer deploys the applications of one project to one environment.
type Deployer struct {
	cfg Config
	env *config.Environment

	resolver   VersionResolver
	renderer   *render.Renderer
	loader     secrets.Loader
	merger     secrets.Merger
	hooks      HookRunner
	builder    Builder
	source     SourceSyncer
	schedulers SchedulerFactory
	recorder   telemetry.Recorder
	notifier   Notifier

	user   string
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithSecretsLoader sets the secret store loader.
func WithSecretsLoader(l secrets.Loader) Option {
	return func(d *Deployer) {
		d.loader = l
	}
}

// WithMerger sets the secret merger.
func WithMerger(m secrets.Merger) Option {
	return func(d *Deployer) {
		d.merger = m
	}
}

// WithHookRunner sets the hook runner.
func WithHookRunner(h HookRunner) Option {
	return func(d *Deployer) {
		d.hooks = h
	}
}

// WithBuilder sets the image builder.
func WithBuilder(b Builder) Option {
	return func(d *Deployer) {
		d.builder = b
	}
}

// WithSourceSyncer enables checkout sync before each deploy.
func WithSourceSyncer(s SourceSyncer) Option {
	return func(d *Deployer) {
		d.source = s
	}
}

// WithSchedulers sets how scheduler adapters are selected.
func WithSchedulers(f SchedulerFactory) Option {
	return func(d *Deployer) {
		d.schedulers = f
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(r telemetry.Recorder) Option {
	return func(d *Deployer) {
		d.recorder = r
	}
}

// WithNotifier sets the deploy notifier.
func WithNotifier(n Notifier) Option {
	return func(d *Deployer) {
		d.notifier = n
	}
}

// WithUser sets the user recorded in telemetry and notifications.
func WithUser(user string) Option {
	return func(d *Deployer) {
		d.user = user
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Deployer) {
		d.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Deployer) {
		d.logger = l
	}
}

// NewDeployer creates a Deployer for cfg.
func NewDeployer(cfg Config, resolver VersionResolver, opts ...Option) (*Deployer, error) {
	if cfg.Settings == nil {
		return nil, rerrors.ConfigurationMissing("settings", "environment settings not loaded")
	}
	if cfg.Project == nil {
		return nil, rerrors.ConfigurationMissing("project", "project configuration not loaded")
	}
	env, err := cfg.Settings.Environment(cfg.Env)
	if err != nil {
		return nil, err
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}

	d := &Deployer{
		cfg:      cfg,
		env:      env,
		resolver: resolver,
		renderer: render.NewRenderer(),
		loader:   secrets.NewFileLoader(cfg.Dirs.Secrets),
		merger:   secrets.SentinelMerger{},
		hooks:    hooks.NewRunner(),
		builder:  build.NewDockerCLI(),
		schedulers: func(app *config.App, env *config.Environment) (scheduler.Scheduler, error) {
			return scheduler.ForApp(app, env)
		},
		recorder: telemetry.Multi(nil),
		user:     os.Getenv("USER"),
		now:      time.Now,
		logger:   log.WithComponent("deploy"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Deploy runs the pipeline for app. A failure aborts the remaining stages
// of app only; the returned Result is always non-nil.
func (d *Deployer) Deploy(ctx context.Context, app *config.App) (*Result, error) {
	runID := uuid.NewString()
	start := d.now()

	r := &appRun{
		d:          d,
		app:        app,
		identifier: telemetry.Identifier(d.cfg.Project.Name, d.user, app.Name, start),
		logger: log.WithApp(d.logger, app.Name, d.cfg.Env).With().
			Str("run_id", runID).
			Logger(),
		res: &Result{App: app.Name, RunID: runID},
	}

	err := r.run(ctx)
	end := d.now()
	r.res.Duration = end.Sub(start)
	r.res.Err = err

	r.record(ctx, telemetry.EventDeploy, start, end, err)
	r.announce(ctx, err)

	if err != nil {
		r.logger.Error().Err(err).Str("state", r.res.State.String()).Msg("Deploy failed")
	} else {
		r.logger.Info().Str("image", r.res.Image).Dur("duration", r.res.Duration).Msg("Deploy completed")
	}
	return r.res, err
}

// appRun is the state of one application deploy.
type appRun struct {
	d          *Deployer
	app        *config.App
	identifier string
	logger     zerolog.Logger
	res        *Result
}

func (r *appRun) run(ctx context.Context) error {
	d, app, cfg := r.d, r.app, r.d.cfg

	repo := cfg.Project.RepoFor(app)
	repoDir := filepath.Join(cfg.WorkDir, config.RepoName(repo))
	buildDir := filepath.Join(repoDir, app.Path)

	var sched scheduler.Scheduler
	if cfg.needsScheduler() {
		s, err := d.schedulers(app, d.env)
		if err != nil {
			return r.fail(StageConfigure, err)
		}
		sched = s
	}

	if d.source != nil && !cfg.SkipSync {
		if err := r.sync(ctx, repo, repoDir, buildDir); err != nil {
			return r.fail(StageSource, err)
		}
	}

	if err := r.resolve(ctx, sched, repoDir); err != nil {
		return r.fail(StageResolve, err)
	}

	manifests, err := r.render(repo)
	if err != nil {
		return r.fail(StageRender, err)
	}
	r.res.State = StateRendered

	for i, m := range manifests {
		out, merged, err := secrets.Apply(ctx, d.loader, d.merger, cfg.Env, m)
		if err != nil {
			return r.fail(StageSecrets, err)
		}
		if merged {
			manifests[i] = out
			r.res.State = StateSecretsMerged
		}
	}

	for _, m := range manifests {
		path, err := render.Write(cfg.Dirs.Components, cfg.Env, m)
		if err != nil {
			return r.fail(StageWrite, err)
		}
		r.logger.Debug().Str("file", path).Msg("Manifest written")
		r.res.Files = append(r.res.Files, path)
	}

	if err := r.hook(ctx, hooks.PreBuild, buildDir); err != nil {
		return err
	}
	if !cfg.SkipBuild && cfg.Image == "" {
		err := d.builder.Build(ctx, build.Request{
			Dir:       buildDir,
			Image:     r.res.Image,
			BuildFile: app.BuildFilename,
			BuildArgs: app.BuildArgsFor(cfg.Env),
			Push:      true,
		})
		if err != nil {
			return r.fail(StageBuild, err)
		}
	}
	if err := r.hook(ctx, hooks.PostBuild, buildDir); err != nil {
		return err
	}

	if cfg.SkipPush {
		r.logger.Info().Strs("files", r.res.Files).Msg("Skipping push")
		return nil
	}

	if err := r.hook(ctx, hooks.PrePush, buildDir); err != nil {
		return err
	}

	r.res.State = StatePushPending
	for _, m := range manifests {
		// Push what was written, not what is held in memory.
		written, err := render.Read(cfg.Dirs.Components, cfg.Env, m.Container, m.FileName)
		if err != nil {
			r.res.State = StatePushFailed
			return r.fail(StagePush, err)
		}
		pushed, err := sched.Push(ctx, written)
		if err != nil {
			r.res.State = StatePushFailed
			return r.fail(StagePush, err)
		}
		r.logger.Info().
			Str("id", pushed.AppID).
			Str("endpoint", pushed.Endpoint).
			Int("status", pushed.StatusCode).
			Msg("Manifest pushed")
		r.res.Pushes = append(r.res.Pushes, pushed)
	}
	r.res.State = StatePushed

	return r.hook(ctx, hooks.PostPush, buildDir)
}

func (r *appRun) sync(ctx context.Context, repo, repoDir, buildDir string) error {
	changed, before, after, err := r.d.source.Sync(ctx, repo, r.d.cfg.Branch, repoDir)
	if err != nil {
		return err
	}
	if changed {
		r.logger.Info().Str("before", before).Str("after", after).Msg("Source updated")
	}

	// Private projects are checked out inside the build context.
	for _, p := range r.app.PrivateProjects {
		dir := filepath.Join(buildDir, config.RepoName(p))
		if _, _, _, err := r.d.source.Sync(ctx, p, r.d.cfg.Branch, dir); err != nil {
			return fmt.Errorf("private project %s: %w", p, err)
		}
	}
	return nil
}

func (r *appRun) resolve(ctx context.Context, sched scheduler.Scheduler, repoDir string) error {
	cfg := r.d.cfg
	imagePath := cfg.Image

	if imagePath == "" {
		tag, err := r.d.resolver.Resolve(ctx, version.Query{
			Registry:   cfg.Settings.Registry,
			ConfigName: cfg.Project.Name,
			AppName:    r.app.Name,
			RepoDir:    repoDir,
			Branch:     cfg.Branch,
			Increment:  cfg.Increment,
			SkipBuild:  cfg.SkipBuild,
			Deployed:   sched,
		})
		if err != nil {
			return err
		}
		r.res.Tag = tag
		imagePath = version.ImageName(cfg.Project.Name, r.app.Name, tag)
	} else if tag, ok := version.ParseImage(version.ImagePrefix(cfg.Project.Name, r.app.Name), imagePath); ok {
		r.res.Tag = tag
	}

	r.res.Image = imagePath
	if cfg.Settings.Registry != "" {
		r.res.Image = cfg.Settings.Registry + "/" + imagePath
	}

	if _, err := reference.ParseNormalizedNamed(r.res.Image); err != nil {
		r.logger.Warn().Err(err).Str("image", r.res.Image).Msg("Image is not a valid docker reference")
	}
	r.logger.Info().Str("image", r.res.Image).Msg("Resolved image")
	return nil
}

func (r *appRun) render(repo string) ([]*render.Manifest, error) {
	cfg := r.d.cfg
	vars := render.MergeVariables(cfg.Project.Vars, r.app.Vars, cfg.Env, r.res.Image)
	dir := render.TemplateDir(cfg.Dirs.Templates, cfg.WorkDir, repo, r.app)

	manifests := make([]*render.Manifest, 0, len(r.app.Containers))
	for _, container := range r.app.Containers {
		fileName := render.FileName(cfg.Project, container)
		content, err := r.d.renderer.RenderFile(dir, fileName, vars)
		if err != nil {
			return nil, err
		}
		m, err := render.ParseManifest(container, fileName, content)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// hook runs a declared hook and records its outcome.
func (r *appRun) hook(ctx context.Context, name, dir string) error {
	if !hooks.Declared(r.app, name) {
		return nil
	}

	start := r.d.now()
	_, err := r.d.hooks.Run(ctx, name, r.app, dir)
	r.record(ctx, name, start, r.d.now(), err)
	if err != nil {
		return r.fail(name, err)
	}
	return nil
}

func (r *appRun) record(ctx context.Context, event string, start, end time.Time, err error) {
	rec := telemetry.NewRecord(telemetry.Tags{
		App:        r.app.Name,
		Event:      event,
		Identifier: r.identifier,
		ConfigName: r.d.cfg.Project.Name,
		Env:        r.d.cfg.Env,
		User:       r.d.user,
		Outcome:    telemetry.Outcome(err),
	}, start, end)

	if err := r.d.recorder.Record(ctx, rec); err != nil {
		r.logger.Warn().Err(err).Str("event", event).Msg("Failed to record telemetry")
	}
}

func (r *appRun) announce(ctx context.Context, err error) {
	if r.d.notifier == nil {
		return
	}
	msg := notify.Deploy{
		User:     r.d.user,
		App:      r.app.Name,
		Env:      r.d.cfg.Env,
		Branch:   r.d.cfg.Branch,
		Image:    r.res.Image,
		Duration: r.res.Duration,
		Err:      err,
	}
	if nerr := r.d.notifier.SendDeploy(ctx, msg); nerr != nil {
		r.logger.Warn().Err(nerr).Msg("Failed to send deploy notification")
	}
}

// fail stamps the application, environment and stage onto err.
func (r *appRun) fail(stage string, err error) error {
	if rerrors.KindOf(err) != "" {
		return rerrors.WithContext(err, r.app.Name, r.d.cfg.Env, stage)
	}
	return fmt.Errorf("%s %s (%s): %w", stage, r.app.Name, r.d.cfg.Env, err)
}
