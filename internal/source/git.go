// Package source reads commit identifiers and syncs application checkouts
// with go-git.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/log"
)

// DefaultRemote is the remote whose branches are preferred for commit lookup.
const DefaultRemote = "origin"

// Git implements commit lookup and checkout sync on local repositories.
type Git struct {
	depth  int
	logger zerolog.Logger
}

// Option configures Git.
type Option func(*Git)

// WithDepth limits clones and fetches to depth commits. 0 means full history.
func WithDepth(depth int) Option {
	return func(g *Git) {
		g.depth = depth
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Git) {
		g.logger = l
	}
}

// New creates a Git.
func New(opts ...Option) *Git {
	g := &Git{
		logger: log.WithComponent("source"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Commit returns the commit branch points at in repoDir. The remote-tracking
// branch is preferred over the local branch so a fresh fetch wins.
func (g *Git) Commit(_ context.Context, repoDir, branch string) (string, error) {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return "", rerrors.SourceUnavailable(branch, fmt.Errorf("open %s: %w", repoDir, err))
	}

	names := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName(DefaultRemote, branch),
		plumbing.NewBranchReferenceName(branch),
	}
	for _, name := range names {
		ref, err := repo.Reference(name, true)
		if err == nil {
			return ref.Hash().String(), nil
		}
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", rerrors.SourceUnavailable(branch, err)
		}
	}

	return "", rerrors.SourceUnavailable(branch, plumbing.ErrReferenceNotFound)
}

// User returns the global git user name, falling back to $USER.
func (g *Git) User() string {
	cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
	if err == nil && cfg.User.Name != "" {
		return cfg.User.Name
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

// Sync clones url into dir or, when dir already holds a repository, fetches
// and hard-resets it to the remote branch.
// Returns (changed, beforeCommit, afterCommit, error).
// For fresh clones, changed is always true.
func (g *Git) Sync(ctx context.Context, url, branch, dir string) (bool, string, string, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return g.clone(ctx, url, branch, dir)
	}
	if err != nil {
		return false, "", "", fmt.Errorf("open %s: %w", dir, err)
	}
	return g.pull(ctx, repo, branch, dir)
}

func (g *Git) clone(ctx context.Context, url, branch, dir string) (bool, string, string, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return false, "", "", fmt.Errorf("create %s: %w", filepath.Dir(dir), err)
	}

	g.logger.Info().Str("repo", url).Str("branch", branch).Str("dir", dir).Msg("Cloning repository")
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           url,
		RemoteName:    DefaultRemote,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         g.depth,
	})
	if err != nil {
		return false, "", "", rerrors.SourceUnavailable(branch, fmt.Errorf("clone %s: %w", url, err))
	}

	head, err := repo.Head()
	if err != nil {
		return false, "", "", fmt.Errorf("read HEAD: %w", err)
	}
	return true, "", head.Hash().String(), nil
}

func (g *Git) pull(ctx context.Context, repo *git.Repository, branch, dir string) (bool, string, string, error) {
	var before string
	if head, err := repo.Head(); err == nil {
		before = head.Hash().String()
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, DefaultRemote, branch))
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: DefaultRemote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Depth:      g.depth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, "", "", rerrors.SourceUnavailable(branch, fmt.Errorf("fetch %s: %w", dir, err))
	}

	after, err := g.Commit(ctx, dir, branch)
	if err != nil {
		return false, "", "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, "", "", fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: plumbing.NewHash(after), Mode: git.HardReset}); err != nil {
		return false, "", "", fmt.Errorf("reset to %s: %w", after, err)
	}

	if before != after {
		g.logger.Info().Str("before", shortHash(before)).Str("after", shortHash(after)).Msg("Checkout updated")
	}
	return before != after, before, after, nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
