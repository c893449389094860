package registry

import (
	"context"

	"github.com/docker/docker/api/types"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
)

// RegistryAPI is the subset of the Docker SDK used for registry queries.
type RegistryAPI interface {
	// Ping tests the connection to the Docker daemon.
	Ping(ctx context.Context) (types.Ping, error)

	// ImageSearch searches a registry for images matching term.
	ImageSearch(ctx context.Context, term string, options dockerregistry.SearchOptions) ([]dockerregistry.SearchResult, error)

	// Close closes the client connection.
	Close() error
}

// The Docker SDK client satisfies RegistryAPI.
var _ RegistryAPI = (*client.Client)(nil)
