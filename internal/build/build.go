// Package build builds and pushes application images with the docker CLI.
package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/log"
)

// DefaultBuildFile is used when an application names no build file.
const DefaultBuildFile = "Dockerfile"

// Request describes one image build.
type Request struct {
	// Dir is the build context.
	Dir string
	// Image is the full reference, registry included.
	Image string
	// BuildFile is relative to Dir. Empty means DefaultBuildFile.
	BuildFile string
	BuildArgs map[string]string
	// Push pushes the image after a successful build.
	Push bool
}

// CommandRunner runs name with args in dir and returns combined output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// DockerCLI shells out to docker build and docker push.
type DockerCLI struct {
	binary string
	run    CommandRunner
	logger zerolog.Logger
}

// Option configures DockerCLI.
type Option func(*DockerCLI)

// WithBinary overrides the docker executable.
func WithBinary(path string) Option {
	return func(d *DockerCLI) {
		d.binary = path
	}
}

// WithRunner replaces process execution.
func WithRunner(r CommandRunner) Option {
	return func(d *DockerCLI) {
		d.run = r
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *DockerCLI) {
		d.logger = l
	}
}

// NewDockerCLI creates a DockerCLI.
func NewDockerCLI(opts ...Option) *DockerCLI {
	d := &DockerCLI{
		binary: "docker",
		run:    execRunner,
		logger: log.WithComponent("build"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Build builds req.Image from req.Dir and pushes it when req.Push is set.
func (d *DockerCLI) Build(ctx context.Context, req Request) error {
	buildFile := req.BuildFile
	if buildFile == "" {
		buildFile = DefaultBuildFile
	}
	path := filepath.Join(req.Dir, buildFile)
	if _, err := os.Stat(path); err != nil {
		return rerrors.ConfigurationMissing("build_filename", "build file %s does not exist", path)
	}

	args := BuildArgs(req.Image, path, req.BuildArgs)
	d.logger.Info().Str("image", req.Image).Str("dir", req.Dir).Msg("Building image")
	if output, err := d.run(ctx, req.Dir, d.binary, args...); err != nil {
		return fmt.Errorf("docker build: %w\n%s", err, output)
	}

	if !req.Push {
		return nil
	}

	d.logger.Info().Str("image", req.Image).Msg("Pushing image")
	if output, err := d.run(ctx, req.Dir, d.binary, "push", req.Image); err != nil {
		return fmt.Errorf("docker push: %w\n%s", err, output)
	}
	return nil
}

// BuildArgs returns the docker build argument list. Build args are emitted
// in key order.
func BuildArgs(image, buildFile string, buildArgs map[string]string) []string {
	args := []string{"build", "-t", image, "-f", buildFile}

	keys := make([]string, 0, len(buildArgs))
	for k := range buildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", k+"="+buildArgs[k])
	}

	return append(args, ".")
}
