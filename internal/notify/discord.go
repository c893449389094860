package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"
)

// WebhookEnv names the fallback webhook URL variable.
const WebhookEnv = "ROGER_NOTIFY_WEBHOOK"

// Discord embed colors (decimal format).
const (
	ColorSuccess = 0x2ecc71 // Green
	ColorError   = 0xe74c3c // Red
)

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Footer      *discordFooter      `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordProvider posts messages to a Discord-compatible webhook.
type DiscordProvider struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordProvider creates a provider for webhookURL, falling back to
// $ROGER_NOTIFY_WEBHOOK. username overrides the webhook's display name.
func NewDiscordProvider(webhookURL, username string) *DiscordProvider {
	if webhookURL == "" {
		webhookURL = os.Getenv(WebhookEnv)
	}

	return &DiscordProvider{
		webhookURL: webhookURL,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the provider name.
func (d *DiscordProvider) Name() string {
	return "discord"
}

// IsConfigured returns true if the webhook URL is set.
func (d *DiscordProvider) IsConfigured() bool {
	return d.webhookURL != ""
}

// Send posts msg as a single embed.
func (d *DiscordProvider) Send(ctx context.Context, msg *Message) error {
	if !d.IsConfigured() {
		return nil
	}

	embed := discordEmbed{
		Title:       msg.Title,
		Description: msg.Text,
		Color:       severityToColor(msg.Severity),
		Footer:      &discordFooter{Text: fmt.Sprintf("roger/%s", msg.Source)},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	// Sorted so the embed layout is stable between deploys.
	keys := make([]string, 0, len(msg.Metadata))
	for k, v := range msg.Metadata {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:   k,
			Value:  truncateString(msg.Metadata[k], 1024), // Discord field limit.
			Inline: true,
		})
	}

	body, err := json.Marshal(discordPayload{Username: d.username, Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

func severityToColor(severity Severity) int {
	if severity == SeverityError {
		return ColorError
	}
	return ColorSuccess
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
