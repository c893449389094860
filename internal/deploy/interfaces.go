package deploy

import (
	"context"

	"github.com/cameronsjo/roger/internal/build"
	"github.com/cameronsjo/roger/internal/config"
	"github.com/cameronsjo/roger/internal/hooks"
	"github.com/cameronsjo/roger/internal/notify"
	"github.com/cameronsjo/roger/internal/scheduler"
	"github.com/cameronsjo/roger/internal/source"
	"github.com/cameronsjo/roger/internal/version"
)

// VersionResolver computes the release tag for an application.
type VersionResolver interface {
	Resolve(ctx context.Context, q version.Query) (version.Tag, error)
}

// SourceSyncer brings an application checkout up to date.
type SourceSyncer interface {
	// Sync clones or updates dir from url at branch.
	// Returns (changed, beforeCommit, afterCommit, error).
	Sync(ctx context.Context, url, branch, dir string) (changed bool, before, after string, err error)
}

// Builder builds and pushes an application image.
type Builder interface {
	Build(ctx context.Context, req build.Request) error
}

// HookRunner runs lifecycle hooks.
type HookRunner interface {
	Run(ctx context.Context, hook string, app *config.App, dir string) (int, error)
}

// Notifier announces finished deploys.
type Notifier interface {
	SendDeploy(ctx context.Context, d notify.Deploy) error
}

// SchedulerFactory returns the scheduler adapter for app in env.
type SchedulerFactory func(app *config.App, env *config.Environment) (scheduler.Scheduler, error)

// Compile-time interface verification.
var (
	_ VersionResolver = (*version.Resolver)(nil)
	_ SourceSyncer    = (*source.Git)(nil)
	_ Builder         = (*build.DockerCLI)(nil)
	_ HookRunner      = (*hooks.Runner)(nil)
	_ Notifier        = (*notify.Manager)(nil)
)
