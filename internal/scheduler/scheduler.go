// Package scheduler pushes rendered manifests to cluster schedulers and
// reads the images they currently run.
//
// Two variants exist: AppsScheduler for the app/group-oriented scheduler
// and JobsScheduler for the job-oriented one. New picks the variant once
// per application from its scheduler kind.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cameronsjo/roger/internal/config"
	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/log"
	"github.com/cameronsjo/roger/internal/render"
)

// Scheduler is one scheduler endpoint.
type Scheduler interface {
	// Kind returns the scheduler kind this adapter talks to.
	Kind() config.SchedulerKind

	// Push replaces the scheduler's definition with the manifest content.
	// Repeating a push with identical content leaves the same end state.
	Push(ctx context.Context, m *render.Manifest) (PushResult, error)

	// CurrentImage returns the first deployed image containing match, or ""
	// when none does.
	CurrentImage(ctx context.Context, match string) (string, error)
}

// PushResult describes an accepted push.
type PushResult struct {
	// Endpoint is the full URL the manifest was sent to.
	Endpoint string
	// StatusCode is the scheduler's response status.
	StatusCode int
	// AppID is the manifest identifier.
	AppID string
	// Group is set when the manifest was pushed to the group endpoint.
	Group bool
}

// maxErrorBody bounds how much of a rejection body is kept in the error.
const maxErrorBody = 4096

// Option configures a scheduler adapter.
type Option func(*client)

// WithHTTPClient sets the HTTP client. The default has no timeout; callers
// bound requests through the context.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) {
		cl.http = c
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *client) {
		cl.logger = l
	}
}

// New returns the adapter for kind at baseURL.
func New(kind config.SchedulerKind, baseURL string, opts ...Option) (Scheduler, error) {
	c := newClient(baseURL, opts...)
	switch kind {
	case config.KindApps:
		return &AppsScheduler{client: c}, nil
	case config.KindJobs:
		return &JobsScheduler{client: c}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler kind %q", kind)
	}
}

// ForApp returns the adapter for app in env.
func ForApp(app *config.App, env *config.Environment, opts ...Option) (Scheduler, error) {
	baseURL, err := env.Endpoint(app.Kind())
	if err != nil {
		return nil, err
	}
	return New(app.Kind(), baseURL, opts...)
}

// client holds the HTTP plumbing shared by both adapters.
type client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func newClient(baseURL string, opts ...Option) *client {
	c := &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		logger:  log.WithComponent("scheduler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// put sends body to path and returns the status. Non-2xx and transport
// failures are PushRejected.
func (c *client) put(ctx context.Context, path, appID string, body []byte) (string, int, error) {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return endpoint, 0, rerrors.PushRejected(appID, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Str("app_id", appID).Msg("Pushing manifest")

	resp, err := c.http.Do(req)
	if err != nil {
		return endpoint, 0, rerrors.PushRejected(appID, 0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var cause error
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			cause = errors.New(msg)
		}
		return endpoint, resp.StatusCode, rerrors.PushRejected(appID, resp.StatusCode, cause)
	}

	io.Copy(io.Discard, resp.Body)
	return endpoint, resp.StatusCode, nil
}

// getJSON decodes the response of GET path into v.
func (c *client) getJSON(ctx context.Context, path string, v any) error {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status: %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
