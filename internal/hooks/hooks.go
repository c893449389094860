// Package hooks runs an application's lifecycle hook commands.
package hooks

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/cameronsjo/roger/internal/config"
	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/log"
)

// Hook names, in pipeline order.
const (
	PreBuild  = "pre_build"
	PostBuild = "post_build"
	PrePush   = "pre_push"
	PostPush  = "post_push"
)

// Runner executes hook commands through a shell. The working directory is
// set on the child process only; the caller's directory never changes.
type Runner struct {
	shell  string
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell sets the shell used as "<shell> -c <command>".
func WithShell(shell string) Option {
	return func(r *Runner) {
		r.shell = shell
	}
}

// WithOutput sets where hook stdout and stderr go.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner using sh with output on the process streams.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		shell:  "sh",
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: log.WithComponent("hooks"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Declared reports whether app has a command for hook.
func Declared(app *config.App, hook string) bool {
	return app.Hooks[hook] != ""
}

// Run executes app's command for hook in dir and returns its exit code.
// An undeclared hook returns 0 without starting a process. A non-zero exit
// returns HookFailed.
func (r *Runner) Run(ctx context.Context, hook string, app *config.App, dir string) (int, error) {
	command := app.Hooks[hook]
	if command == "" {
		return 0, nil
	}

	r.logger.Info().Str("hook", hook).Str("app", app.Name).Str("dir", dir).Msg("Running hook")

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return code, rerrors.HookFailed(hook, code, err)
}
