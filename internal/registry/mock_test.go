package registry

import (
	"context"
	"errors"

	"github.com/docker/docker/api/types"
	dockerregistry "github.com/docker/docker/api/types/registry"
)

// Common test errors.
var (
	errMockPing   = errors.New("mock: ping failed")
	errMockSearch = errors.New("mock: image search failed")
)

// MockRegistryAPI is a mock implementation of RegistryAPI for testing.
type MockRegistryAPI struct {
	// Function overrides for each method
	PingFunc        func(ctx context.Context) (types.Ping, error)
	ImageSearchFunc func(ctx context.Context, term string, options dockerregistry.SearchOptions) ([]dockerregistry.SearchResult, error)
	CloseFunc       func() error

	// Call tracking
	PingCalls        int
	ImageSearchCalls int
	CloseCalls       int
}

// NewMockRegistryAPI creates a new mock with default no-op implementations.
func NewMockRegistryAPI() *MockRegistryAPI {
	return &MockRegistryAPI{}
}

// Ping implements RegistryAPI.
func (m *MockRegistryAPI) Ping(ctx context.Context) (types.Ping, error) {
	m.PingCalls++
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return types.Ping{APIVersion: "1.45"}, nil
}

// ImageSearch implements RegistryAPI.
func (m *MockRegistryAPI) ImageSearch(ctx context.Context, term string, options dockerregistry.SearchOptions) ([]dockerregistry.SearchResult, error) {
	m.ImageSearchCalls++
	if m.ImageSearchFunc != nil {
		return m.ImageSearchFunc(ctx, term, options)
	}
	return []dockerregistry.SearchResult{}, nil
}

// Close implements RegistryAPI.
func (m *MockRegistryAPI) Close() error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Compile-time check.
var _ RegistryAPI = (*MockRegistryAPI)(nil)
