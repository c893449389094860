package deploy

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/cameronsjo/roger/internal/config"
)

// RunBatch deploys apps and returns one result per app in input order. Apps
// run concurrently, at most concurrency at a time, when Independent reports
// they touch disjoint files; otherwise they run one after another. Every app
// is attempted and all failures are combined.
func (d *Deployer) RunBatch(ctx context.Context, apps []*config.App, concurrency int) ([]*Result, error) {
	results := make([]*Result, len(apps))
	errs := make([]error, len(apps))

	if concurrency > 1 && len(apps) > 1 && !d.Independent(apps) {
		d.logger.Warn().Msg("Applications share output files or checkouts, deploying sequentially")
		concurrency = 1
	}

	if concurrency <= 1 {
		for i, app := range apps {
			results[i], errs[i] = d.Deploy(ctx, app)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(concurrency)
		for i, app := range apps {
			g.Go(func() error {
				results[i], errs[i] = d.Deploy(ctx, app)
				return nil
			})
		}
		_ = g.Wait()
	}

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return results, result.ErrorOrNil()
}

// Independent reports whether no two apps write the same rendered file or,
// when checkouts are synced, share a checkout directory.
func (d *Deployer) Independent(apps []*config.App) bool {
	owner := make(map[string]string)
	claim := func(key, app string) bool {
		if prev, ok := owner[key]; ok && prev != app {
			return false
		}
		owner[key] = app
		return true
	}

	for _, app := range apps {
		for _, c := range app.Containers {
			key := "file:" + filepath.Join(d.cfg.Env, d.cfg.Project.ContainerConfigName(c))
			if !claim(key, app.Name) {
				return false
			}
		}
		if d.source != nil && !d.cfg.SkipSync {
			key := "repo:" + config.RepoName(d.cfg.Project.RepoFor(app))
			if !claim(key, app.Name) {
				return false
			}
		}
	}
	return true
}
