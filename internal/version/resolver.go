package version

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/log"
)

// ImageLister lists image names known to the registry for a search term.
type ImageLister interface {
	ListImages(ctx context.Context, term string) ([]string, error)
}

// CommitSource returns the commit a branch points at in a checkout.
type CommitSource interface {
	Commit(ctx context.Context, repoDir, branch string) (string, error)
}

// DeployedImage returns the image currently deployed for an application, or
// "" when nothing matching is deployed.
type DeployedImage interface {
	CurrentImage(ctx context.Context, match string) (string, error)
}

// Query describes one version resolution.
type Query struct {
	// Registry is the registry host, used as the search term prefix.
	Registry string
	// ConfigName and AppName form the image prefix "<config>-<app>".
	ConfigName string
	AppName    string

	// RepoDir and Branch locate the commit being deployed.
	RepoDir string
	Branch  string

	Increment Increment

	// SkipBuild reuses the deployed version instead of computing a new one.
	SkipBuild bool
	// Deployed is consulted when SkipBuild is set.
	Deployed DeployedImage
}

// Resolver computes the next release tag for an application.
type Resolver struct {
	images  ImageLister
	commits CommitSource
	logger  zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver.
func NewResolver(images ImageLister, commits CommitSource, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		images:  images,
		commits: commits,
		logger:  log.WithComponent("version"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the tag to build and deploy.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Tag, error) {
	prefix := ImagePrefix(q.ConfigName, q.AppName)

	if q.SkipBuild {
		return r.deployed(ctx, q, prefix)
	}

	commit, err := r.commit(ctx, q)
	if err != nil {
		return Tag{}, err
	}

	term := prefix
	if q.Registry != "" {
		term = q.Registry + "/" + prefix
	}
	images, err := r.images.ListImages(ctx, term)
	if err != nil {
		return Tag{}, fmt.Errorf("search registry for %s: %w", term, err)
	}

	latest, ok := Latest(prefix, images)
	if !ok {
		tag := Initial(commit)
		r.logger.Info().Str("tag", tag.String()).Msg("No version in the registry, using initial version")
		return tag, nil
	}

	tag := latest.Next(q.Increment, commit)
	r.logger.Debug().
		Str("latest", latest.Version()).
		Str("increment", q.Increment.String()).
		Str("tag", tag.String()).
		Msg("Resolved next version")
	return tag, nil
}

func (r *Resolver) deployed(ctx context.Context, q Query, prefix string) (Tag, error) {
	if q.Deployed != nil {
		image, err := q.Deployed.CurrentImage(ctx, prefix)
		if err != nil {
			return Tag{}, fmt.Errorf("read deployed image for %s: %w", prefix, err)
		}
		if tag, ok := ParseImage(prefix, image); ok {
			r.logger.Info().Str("tag", tag.String()).Msg("Skipping build, reusing deployed version")
			return tag, nil
		}
		if image != "" {
			r.logger.Warn().Str("image", image).Msg("Deployed image is not a release image")
		}
	}

	commit, err := r.commit(ctx, q)
	if err != nil {
		return Tag{}, err
	}
	return Initial(commit), nil
}

func (r *Resolver) commit(ctx context.Context, q Query) (string, error) {
	commit, err := r.commits.Commit(ctx, q.RepoDir, q.Branch)
	if err != nil {
		if errors.Is(err, rerrors.ErrSourceUnavailable) {
			return "", err
		}
		return "", rerrors.SourceUnavailable(q.Branch, err)
	}
	if commit == "" {
		return "", rerrors.SourceUnavailable(q.Branch, nil)
	}
	return commit, nil
}
