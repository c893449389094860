// Package preflight checks that the host can run a deploy: required
// binaries on PATH and the configured directories in place.
package preflight

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/cameronsjo/roger/internal/config"
)

// BinaryCheck represents a binary the pipeline shells out to.
type BinaryCheck struct {
	Name        string
	Required    bool   // false = warning only
	Purpose     string // which stage needs it
	InstallHint string
}

// Binaries lists the executables used by the pipeline.
var Binaries = []BinaryCheck{
	{
		Name:        "sh",
		Required:    true,
		Purpose:     "lifecycle hooks",
		InstallHint: "Install a POSIX shell",
	},
	{
		Name:        "docker",
		Required:    true,
		Purpose:     "image build and push",
		InstallHint: "Install Docker: https://docs.docker.com/get-docker/",
	},
	{
		Name:        "git",
		Required:    false,
		Purpose:     "hooks that call git; checkouts use a built-in client",
		InstallHint: "Install git: https://git-scm.com/downloads",
	},
}

// Result is the outcome of a preflight run.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether no blocking problem was found.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Checker runs preflight checks.
type Checker struct {
	lookPath func(string) (string, error)
	binaries []BinaryCheck
}

// New creates a Checker that searches PATH.
func New() *Checker {
	return &Checker{lookPath: exec.LookPath, binaries: Binaries}
}

// CheckBinaries reports missing binaries. A missing required binary is an
// error, a missing optional one a warning.
func (c *Checker) CheckBinaries() Result {
	var res Result
	for _, bin := range c.binaries {
		if _, err := c.lookPath(bin.Name); err == nil {
			continue
		}
		msg := fmt.Sprintf("%s (%s): %s", bin.Name, bin.Purpose, bin.InstallHint)
		if bin.Required {
			res.Errors = append(res.Errors, msg)
		} else {
			res.Warnings = append(res.Warnings, msg)
		}
	}
	return res
}

// CheckDirs reports configured directories that do not exist. The source
// directory is optional and only checked when set.
func CheckDirs(dirs config.Dirs) Result {
	var res Result
	check := func(env, path string) {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s does not exist", env, path))
		case !info.IsDir():
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s is not a directory", env, path))
		}
	}

	check(config.EnvConfigDir, dirs.Config)
	check(config.EnvTemplatesDir, dirs.Templates)
	check(config.EnvSecretsDir, dirs.Secrets)

	// Components and checkouts are created on first write.
	for env, path := range map[string]string{
		config.EnvComponentsDir: dirs.Components,
		config.EnvSourceDir:     dirs.Source,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s will be created", env, path))
		}
	}
	return res
}

// Merge combines results.
func Merge(results ...Result) Result {
	var out Result
	for _, r := range results {
		out.Errors = append(out.Errors, r.Errors...)
		out.Warnings = append(out.Warnings, r.Warnings...)
	}
	return out
}
