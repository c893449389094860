// Package notify sends deploy notifications to chat providers.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Severity levels for notifications.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Message is one notification.
type Message struct {
	Title    string            // Short title
	Text     string            // Full message body
	Severity Severity          // Drives the provider's color
	Source   string            // What generated this, e.g. "deploy"
	Metadata map[string]string // Additional context (image, env, ...)
}

// Provider delivers messages to one backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
	IsConfigured() bool
}

// Manager fans messages out to its configured providers.
type Manager struct {
	providers []Provider
}

// NewManager creates a Manager with no providers.
func NewManager() *Manager {
	return &Manager{providers: make([]Provider, 0)}
}

// AddProvider adds p if it is configured.
func (m *Manager) AddProvider(p Provider) {
	if p.IsConfigured() {
		m.providers = append(m.providers, p)
	}
}

// HasProviders returns true if at least one provider is configured.
func (m *Manager) HasProviders() bool {
	return len(m.providers) > 0
}

// ProviderNames returns the names of all configured providers.
func (m *Manager) ProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// Send delivers msg to every provider. Every provider is tried; failures
// are combined.
func (m *Manager) Send(ctx context.Context, msg *Message) error {
	var result *multierror.Error
	for _, p := range m.providers {
		if err := p.Send(ctx, msg); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

// Deploy summarizes one application deploy.
type Deploy struct {
	User     string
	App      string
	Env      string
	Branch   string
	Image    string
	Duration time.Duration
	Err      error
}

// Text renders the deploy summary line.
func (d Deploy) Text() string {
	if d.Err != nil {
		return fmt.Sprintf("%s's deploy for %s / %s / %s (%s) failed after %.2f seconds: %v",
			d.User, d.App, d.Env, d.Branch, d.Image, d.Duration.Seconds(), d.Err)
	}
	return fmt.Sprintf("%s's deploy for %s / %s / %s (%s) completed in %.2f seconds.",
		d.User, d.App, d.Env, d.Branch, d.Image, d.Duration.Seconds())
}

// SendDeploy sends the deploy summary.
func (m *Manager) SendDeploy(ctx context.Context, d Deploy) error {
	msg := &Message{
		Title:    "Deploy Completed",
		Text:     d.Text(),
		Severity: SeverityInfo,
		Source:   "deploy",
		Metadata: map[string]string{
			"app":    d.App,
			"env":    d.Env,
			"branch": d.Branch,
			"image":  d.Image,
		},
	}
	if d.Err != nil {
		msg.Title = "Deploy Failed"
		msg.Severity = SeverityError
		msg.Metadata["error"] = d.Err.Error()
	}
	return m.Send(ctx, msg)
}
