package scheduler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/roger/internal/config"
	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/render"
)

type request struct {
	method      string
	path        string
	contentType string
	body        string
}

// recorder is an httptest handler that records requests and replies with
// a fixed status and body.
type recorder struct {
	mu       sync.Mutex
	requests []request
	status   int
	body     string
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	rec.requests = append(rec.requests, request{
		method:      r.Method,
		path:        r.URL.Path,
		contentType: r.Header.Get("Content-Type"),
		body:        string(body),
	})
	rec.mu.Unlock()

	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, rec.body)
}

func manifest(t *testing.T, content string) *render.Manifest {
	t.Helper()
	m, err := render.ParseManifest("grafana", "app-grafana.json", []byte(content))
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	s, err := New(config.KindApps, "http://apps/")
	require.NoError(t, err)
	assert.IsType(t, &AppsScheduler{}, s)
	assert.Equal(t, config.KindApps, s.Kind())

	s, err = New(config.KindJobs, "http://jobs")
	require.NoError(t, err)
	assert.IsType(t, &JobsScheduler{}, s)
	assert.Equal(t, config.KindJobs, s.Kind())

	_, err = New("scheduler-batch", "http://x")
	assert.Error(t, err)
}

func TestForApp(t *testing.T) {
	env := &config.Environment{
		Name:            "dev",
		Endpoints:       map[config.SchedulerKind]string{config.KindApps: "http://apps.dev"},
		ChronosEndpoint: "http://jobs.dev",
	}

	project, err := config.ParseProject([]byte(`{"name": "app", "apps": {
		"web": {"containers": ["web"]},
		"cron": {"framework": "chronos", "containers": ["cron"]}
	}}`))
	require.NoError(t, err)

	s, err := ForApp(project.Apps["web"], env)
	require.NoError(t, err)
	assert.Equal(t, "http://apps.dev", s.(*AppsScheduler).baseURL)

	s, err = ForApp(project.Apps["cron"], env)
	require.NoError(t, err)
	assert.Equal(t, "http://jobs.dev", s.(*JobsScheduler).baseURL)

	_, err = ForApp(project.Apps["web"], &config.Environment{Name: "stage"})
	assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
}

func TestAppsScheduler_Push(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantPath  string
		wantID    string
		wantGroup bool
	}{
		{
			name:     "single app",
			content:  `{"id": "/grafana", "instances": 1}`,
			wantPath: "/v2/apps/grafana",
			wantID:   "grafana",
		},
		{
			name:      "group",
			content:   `{"id": "content", "groups": [{"id": "kairos"}]}`,
			wantPath:  "/v2/groups/content",
			wantID:    "content",
			wantGroup: true,
		},
		{
			name:     "nested id",
			content:  `{"id": "/content/kairos"}`,
			wantPath: "/v2/apps/content/kairos",
			wantID:   "content/kairos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{status: http.StatusOK, body: `{"deploymentId": "abc"}`}
			server := httptest.NewServer(rec)
			defer server.Close()

			s, err := New(config.KindApps, server.URL)
			require.NoError(t, err)

			result, err := s.Push(context.Background(), manifest(t, tt.content))
			require.NoError(t, err)

			require.Len(t, rec.requests, 1)
			req := rec.requests[0]
			assert.Equal(t, http.MethodPut, req.method)
			assert.Equal(t, tt.wantPath, req.path)
			assert.Equal(t, "application/json", req.contentType)
			assert.Equal(t, tt.content, req.body)

			assert.Equal(t, server.URL+tt.wantPath, result.Endpoint)
			assert.Equal(t, http.StatusOK, result.StatusCode)
			assert.Equal(t, tt.wantID, result.AppID)
			assert.Equal(t, tt.wantGroup, result.Group)
		})
	}
}

func TestAppsScheduler_Push_Idempotent(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	s, err := New(config.KindApps, server.URL)
	require.NoError(t, err)
	m := manifest(t, `{"id": "grafana"}`)

	first, err := s.Push(context.Background(), m)
	require.NoError(t, err)
	second, err := s.Push(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, rec.requests, 2)
	assert.Equal(t, rec.requests[0], rec.requests[1], "same full-replace request each time")
}

func TestAppsScheduler_Push_MissingID(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	s, err := New(config.KindApps, server.URL)
	require.NoError(t, err)

	_, err = s.Push(context.Background(), manifest(t, `{"instances": 1}`))
	assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
	assert.Empty(t, rec.requests)
}

func TestPush_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			rec := &recorder{status: status, body: `{"message": "App is locked by one or more deployments"}`}
			server := httptest.NewServer(rec)
			defer server.Close()

			s, err := New(config.KindApps, server.URL)
			require.NoError(t, err)

			_, err = s.Push(context.Background(), manifest(t, `{"id": "grafana"}`))
			require.Error(t, err)
			assert.ErrorIs(t, err, rerrors.ErrPushRejected)
			assert.Contains(t, err.Error(), "locked")

			var rerr *rerrors.Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, status, rerr.Status)
			assert.Equal(t, "grafana", rerr.Key)

			assert.Len(t, rec.requests, 1, "no retry")
		})
	}
}

func TestPush_Unreachable(t *testing.T) {
	server := httptest.NewServer(&recorder{})
	url := server.URL
	server.Close()

	s, err := New(config.KindJobs, url)
	require.NoError(t, err)

	_, err = s.Push(context.Background(), manifest(t, `{"name": "nightly"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrPushRejected)

	var rerr *rerrors.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 0, rerr.Status)
	assert.Equal(t, "nightly", rerr.Key)
}

func TestJobsScheduler_Push(t *testing.T) {
	rec := &recorder{status: http.StatusNoContent}
	server := httptest.NewServer(rec)
	defer server.Close()

	s, err := New(config.KindJobs, server.URL)
	require.NoError(t, err)

	content := `{"name": "nightly-report", "schedule": "R/2015-01-01T00:00:00Z/PT24H"}`
	result, err := s.Push(context.Background(), manifest(t, content))
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, http.MethodPut, rec.requests[0].method)
	assert.Equal(t, JobsEndpoint, rec.requests[0].path)
	assert.Equal(t, content, rec.requests[0].body)

	assert.Equal(t, "nightly-report", result.AppID)
	assert.Equal(t, http.StatusNoContent, result.StatusCode)
	assert.False(t, result.Group)
}

func TestAppsScheduler_CurrentImage(t *testing.T) {
	rec := &recorder{body: `{"apps": [
		{"id": "/no-container", "container": null},
		{"id": "/grafana", "container": {"docker": {"image": "grafana/grafana:2.1.3"}}},
		{"id": "/kairos", "container": {"docker": {"image": "registry:5000/app-kairos-abc123/v0.46"}}}
	]}`}
	server := httptest.NewServer(rec)
	defer server.Close()

	s, err := New(config.KindApps, server.URL)
	require.NoError(t, err)

	image, err := s.CurrentImage(context.Background(), "app-kairos")
	require.NoError(t, err)
	assert.Equal(t, "registry:5000/app-kairos-abc123/v0.46", image)
	assert.Equal(t, "/v2/apps", rec.requests[0].path)
	assert.Equal(t, http.MethodGet, rec.requests[0].method)

	image, err = s.CurrentImage(context.Background(), "app-missing")
	require.NoError(t, err)
	assert.Empty(t, image)
}

func TestJobsScheduler_CurrentImage(t *testing.T) {
	rec := &recorder{body: `[
		{"name": "no-container"},
		{"name": "nightly", "container": {"image": "registry:5000/app-nightly-abc123/v1.2.0"}}
	]`}
	server := httptest.NewServer(rec)
	defer server.Close()

	s, err := New(config.KindJobs, server.URL)
	require.NoError(t, err)

	image, err := s.CurrentImage(context.Background(), "app-nightly")
	require.NoError(t, err)
	assert.Equal(t, "registry:5000/app-nightly-abc123/v1.2.0", image)
	assert.Equal(t, "/scheduler/jobs", rec.requests[0].path)
}

func TestCurrentImage_Errors(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		server := httptest.NewServer(&recorder{status: http.StatusServiceUnavailable})
		defer server.Close()

		s, err := New(config.KindApps, server.URL)
		require.NoError(t, err)
		_, err = s.CurrentImage(context.Background(), "x")
		assert.ErrorContains(t, err, "unexpected status: 503")
	})

	t.Run("bad body", func(t *testing.T) {
		server := httptest.NewServer(&recorder{body: `not json`})
		defer server.Close()

		s, err := New(config.KindJobs, server.URL)
		require.NoError(t, err)
		_, err = s.CurrentImage(context.Background(), "x")
		assert.ErrorContains(t, err, "decode")
	})
}
