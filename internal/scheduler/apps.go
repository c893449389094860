package scheduler

import (
	"context"
	"strings"

	"github.com/cameronsjo/roger/internal/config"
	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/render"
)

// AppsScheduler pushes to the app/group-oriented scheduler. Manifests with
// a "groups" key replace a group, all others replace a single app, both
// keyed by the manifest id.
type AppsScheduler struct {
	*client
}

var _ Scheduler = (*AppsScheduler)(nil)

// Kind implements Scheduler.
func (s *AppsScheduler) Kind() config.SchedulerKind {
	return config.KindApps
}

// Push implements Scheduler.
func (s *AppsScheduler) Push(ctx context.Context, m *render.Manifest) (PushResult, error) {
	if m.ID == "" {
		return PushResult{}, rerrors.ConfigurationMissing("id", "manifest %s has no id", m.FileName)
	}

	path := "/v2/apps/" + m.ID
	if m.HasGroups {
		path = "/v2/groups/" + m.ID
	}

	endpoint, status, err := s.put(ctx, path, m.ID, m.Content)
	if err != nil {
		return PushResult{}, err
	}

	return PushResult{
		Endpoint:   endpoint,
		StatusCode: status,
		AppID:      m.ID,
		Group:      m.HasGroups,
	}, nil
}

type appsState struct {
	Apps []struct {
		ID        string `json:"id"`
		Container *struct {
			Docker *struct {
				Image string `json:"image"`
			} `json:"docker"`
		} `json:"container"`
	} `json:"apps"`
}

// CurrentImage implements Scheduler.
func (s *AppsScheduler) CurrentImage(ctx context.Context, match string) (string, error) {
	var state appsState
	if err := s.getJSON(ctx, "/v2/apps", &state); err != nil {
		return "", err
	}

	for _, app := range state.Apps {
		if app.Container == nil || app.Container.Docker == nil {
			continue
		}
		if image := app.Container.Docker.Image; strings.Contains(image, match) {
			return image, nil
		}
	}
	return "", nil
}
