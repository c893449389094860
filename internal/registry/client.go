package registry

import (
	"context"
	"fmt"
	"time"

	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
)

// DefaultSearchLimit caps the number of results a single search returns.
const DefaultSearchLimit = 100

// Client lists images through the Docker daemon.
type Client struct {
	api   RegistryAPI
	limit int
}

// NewClient creates a client connected to the Docker daemon from the
// environment (DOCKER_HOST and friends).
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &Client{api: cli, limit: DefaultSearchLimit}, nil
}

// NewClientWithAPI creates a client with a custom API implementation.
// This is primarily used for testing with mock implementations.
func NewClientWithAPI(api RegistryAPI) *Client {
	return &Client{api: api, limit: DefaultSearchLimit}
}

// Ping tests the connection to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker: %w", err)
	}

	return nil
}

// ListImages returns the names of images matching term.
func (c *Client) ListImages(ctx context.Context, term string) ([]string, error) {
	results, err := c.api.ImageSearch(ctx, term, dockerregistry.SearchOptions{Limit: c.limit})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", term, err)
	}

	names := make([]string, 0, len(results))
	for _, r := range results {
		if r.Name != "" {
			names = append(names, r.Name)
		}
	}

	return names, nil
}

// Close closes the Docker client connection.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
}
