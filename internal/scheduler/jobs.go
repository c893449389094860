package scheduler

import (
	"context"
	"strings"

	"github.com/cameronsjo/roger/internal/config"
	"github.com/cameronsjo/roger/internal/render"
)

// JobsEndpoint is the job scheduler's create-or-replace endpoint. The job
// identity comes from the name inside the body.
const JobsEndpoint = "/scheduler/iso8601"

// JobsScheduler pushes job definitions to the job-oriented scheduler.
type JobsScheduler struct {
	*client
}

var _ Scheduler = (*JobsScheduler)(nil)

// Kind implements Scheduler.
func (s *JobsScheduler) Kind() config.SchedulerKind {
	return config.KindJobs
}

// Push implements Scheduler.
func (s *JobsScheduler) Push(ctx context.Context, m *render.Manifest) (PushResult, error) {
	id := m.Identifier()

	endpoint, status, err := s.put(ctx, JobsEndpoint, id, m.Content)
	if err != nil {
		return PushResult{}, err
	}

	return PushResult{
		Endpoint:   endpoint,
		StatusCode: status,
		AppID:      id,
	}, nil
}

type job struct {
	Name      string `json:"name"`
	Container *struct {
		Image string `json:"image"`
	} `json:"container"`
}

// CurrentImage implements Scheduler.
func (s *JobsScheduler) CurrentImage(ctx context.Context, match string) (string, error) {
	var jobs []job
	if err := s.getJSON(ctx, "/scheduler/jobs", &jobs); err != nil {
		return "", err
	}

	for _, j := range jobs {
		if j.Container == nil {
			continue
		}
		if strings.Contains(j.Container.Image, match) {
			return j.Container.Image, nil
		}
	}
	return "", nil
}
