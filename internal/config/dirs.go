package config

import (
	"path/filepath"
	"strings"

	rerrors "github.com/cameronsjo/roger/internal/errors"
)

// Environment variables naming the working directories.
const (
	EnvConfigDir     = "ROGER_CONFIG_DIR"
	EnvTemplatesDir  = "ROGER_TEMPLATES_DIR"
	EnvComponentsDir = "ROGER_COMPONENTS_DIR"
	EnvSecretsDir    = "ROGER_SECRETS_DIR"
	EnvSourceDir     = "ROGER_DEPLOY_SOURCE_DIR"
	EnvEnvironment   = "ROGER_ENV"
)

// Dirs are the directories a deploy run reads from and writes to.
type Dirs struct {
	// Config holds the environment file and project files.
	Config string
	// Templates is the shared template directory.
	Templates string
	// Components receives rendered manifests under <env>/.
	Components string
	// Secrets holds secret files under <env>/.
	Secrets string
	// Source is the checkout root. Empty means the caller creates a
	// temporary directory for the run.
	Source string
}

// DirsFromEnv reads Dirs from environment variables. Config, Templates,
// Components and Secrets are required.
func DirsFromEnv(getenv func(string) string) (Dirs, error) {
	read := func(name string, required bool) (string, error) {
		v := strings.TrimSpace(getenv(name))
		if v == "" {
			if required {
				return "", rerrors.ConfigurationMissing(name, "environment variable $%s is not set", name)
			}
			return "", nil
		}
		abs, err := filepath.Abs(v)
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	var d Dirs
	var err error
	if d.Config, err = read(EnvConfigDir, true); err != nil {
		return d, err
	}
	if d.Templates, err = read(EnvTemplatesDir, true); err != nil {
		return d, err
	}
	if d.Components, err = read(EnvComponentsDir, true); err != nil {
		return d, err
	}
	if d.Secrets, err = read(EnvSecretsDir, true); err != nil {
		return d, err
	}
	if d.Source, err = read(EnvSourceDir, false); err != nil {
		return d, err
	}
	return d, nil
}
