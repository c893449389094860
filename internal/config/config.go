// Package config holds the deploy data model and loads it from the
// environment file and project files in the configuration directory.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	rerrors "github.com/cameronsjo/roger/internal/errors"
)

// EnvFileNames are the accepted names of the environment file, in lookup order.
var EnvFileNames = []string{"roger-env.json", "roger-env.yaml", "roger-env.yml"}

// AllApps selects every application in a project.
const AllApps = "all"

// Settings is the environment file: registry plus the deployable environments.
type Settings struct {
	// Registry is the image registry host, e.g. "registry.example.com:5000".
	Registry string `json:"registry" yaml:"registry"`

	// Default is the environment used when none is requested.
	Default string `json:"default" yaml:"default"`

	// Environments maps environment name to its targets.
	Environments map[string]*Environment `json:"environments" yaml:"environments"`

	// StatsdEndpoint and StatsdPort are the legacy global telemetry target.
	StatsdEndpoint string `json:"statsd_endpoint" yaml:"statsd_endpoint"`
	StatsdPort     int    `json:"statsd_port" yaml:"statsd_port"`
}

// Environment is one deployable environment.
type Environment struct {
	Name string `json:"-" yaml:"-"`

	// Endpoints maps scheduler kind to its base URL.
	Endpoints map[SchedulerKind]string `json:"endpoints" yaml:"endpoints"`

	// Legacy endpoint keys. Used when Endpoints has no entry for the kind.
	MarathonEndpoint string `json:"marathon_endpoint" yaml:"marathon_endpoint"`
	ChronosEndpoint  string `json:"chronos_endpoint" yaml:"chronos_endpoint"`

	// Telemetry is the optional telemetry endpoint, e.g. "statsd:8125".
	Telemetry string `json:"telemetry" yaml:"telemetry"`
}

// Endpoint returns the base URL for a scheduler kind.
func (e *Environment) Endpoint(kind SchedulerKind) (string, error) {
	if url := e.Endpoints[kind]; url != "" {
		return strings.TrimSuffix(url, "/"), nil
	}

	var legacy string
	switch kind {
	case KindApps:
		legacy = e.MarathonEndpoint
	case KindJobs:
		legacy = e.ChronosEndpoint
	}
	if legacy != "" {
		return strings.TrimSuffix(legacy, "/"), nil
	}

	return "", rerrors.ConfigurationMissing(string(kind), "environment %q has no %s endpoint", e.Name, kind)
}

// TelemetryEndpoint returns the environment telemetry target, falling back to
// the global statsd settings.
func (s *Settings) TelemetryEndpoint(env *Environment) string {
	if env != nil && env.Telemetry != "" {
		return env.Telemetry
	}
	if s.StatsdEndpoint == "" {
		return ""
	}
	if s.StatsdPort == 0 {
		return s.StatsdEndpoint
	}
	return fmt.Sprintf("%s:%d", s.StatsdEndpoint, s.StatsdPort)
}

// Environment returns the named environment.
func (s *Settings) Environment(name string) (*Environment, error) {
	env, ok := s.Environments[name]
	if !ok || env == nil {
		return nil, rerrors.ConfigurationMissing(name, "environment %q not found in environment file", name)
	}
	env.Name = name
	return env, nil
}

// SelectEnvironment picks the environment name: an explicit flag wins, then
// the ROGER_ENV value, then the file default.
func (s *Settings) SelectEnvironment(flag, fromEnv string) (string, error) {
	name := s.Default
	if strings.TrimSpace(fromEnv) != "" {
		name = strings.TrimSpace(fromEnv)
	}
	if flag != "" {
		name = flag
	}
	if name == "" {
		return "", rerrors.ConfigurationMissing("default", "no environment requested and no default set")
	}
	if _, err := s.Environment(name); err != nil {
		return "", err
	}
	return name, nil
}

// VariableSet is a two-level variable mapping: global values plus
// per-environment values.
type VariableSet struct {
	Global      map[string]any            `json:"global" yaml:"global"`
	Environment map[string]map[string]any `json:"environment" yaml:"environment"`
}

// ForEnv returns the environment tier for env, or nil.
func (v VariableSet) ForEnv(env string) map[string]any {
	if v.Environment == nil {
		return nil
	}
	return v.Environment[env]
}

// BuildArgs holds build arguments keyed by environment.
type BuildArgs struct {
	Environment map[string]map[string]string `json:"environment" yaml:"environment"`
}

// Notifications configures the deploy notification channel.
type Notifications struct {
	Channel  string `json:"channel" yaml:"channel"`
	Username string `json:"username" yaml:"username"`
	Webhook  string `json:"webhook" yaml:"webhook"`
}

// Project is one project file: shared settings plus its applications.
type Project struct {
	// File is the project file name, e.g. "content.json".
	File string `json:"-" yaml:"-"`

	// Name is the configuration name used as image and template prefix.
	Name string `json:"name" yaml:"name"`

	// Repo is the default source repository for apps that do not set one.
	Repo string `json:"repo" yaml:"repo"`

	// Vars are the configuration-wide defaults.
	Vars VariableSet `json:"vars" yaml:"vars"`

	Notifications Notifications `json:"notifications" yaml:"notifications"`

	Apps map[string]*App `json:"apps" yaml:"apps"`
}

// App is one deployable application.
type App struct {
	Name string `json:"-" yaml:"-"`

	Repo      string `json:"repo" yaml:"repo"`
	Framework string `json:"framework" yaml:"framework"`

	// Containers lists container names in deploy order.
	Containers []string `json:"containers" yaml:"containers"`

	// TemplatePath overrides the shared template directory with a path
	// inside the app's repository.
	TemplatePath string `json:"template_path" yaml:"template_path"`

	BuildArgs BuildArgs `json:"build-args" yaml:"build-args"`

	// Vars are the application-specific overrides.
	Vars VariableSet `json:"vars" yaml:"vars"`

	// Hooks maps hook name to shell command.
	Hooks map[string]string `json:"hooks" yaml:"hooks"`

	PrivateProjects []string `json:"privateProjects" yaml:"privateProjects"`

	// Path is the Dockerfile directory inside the repository.
	Path string `json:"path" yaml:"path"`

	// BuildFilename names a Dockerfile other than "Dockerfile".
	BuildFilename string `json:"build_filename" yaml:"build_filename"`

	kind SchedulerKind
}

// Kind returns the scheduler kind the app deploys to.
func (a *App) Kind() SchedulerKind {
	if a.kind == "" {
		return KindApps
	}
	return a.kind
}

// BuildArgsFor returns the build arguments for env.
func (a *App) BuildArgsFor(env string) map[string]string {
	if a.BuildArgs.Environment == nil {
		return nil
	}
	return a.BuildArgs.Environment[env]
}

// RepoFor returns the repository an app is built from.
func (p *Project) RepoFor(app *App) string {
	if app.Repo != "" {
		return app.Repo
	}
	if p.Repo != "" {
		return p.Repo
	}
	return app.Name
}

// AppNames returns the application names in sorted order.
func (p *Project) AppNames() []string {
	names := make([]string, 0, len(p.Apps))
	for name := range p.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the apps to deploy for an application argument, which is
// either an app name or "all".
func (p *Project) Select(application string) ([]*App, error) {
	if application == AllApps {
		apps := make([]*App, 0, len(p.Apps))
		for _, name := range p.AppNames() {
			apps = append(apps, p.Apps[name])
		}
		return apps, nil
	}

	app, ok := p.Apps[application]
	if !ok || app == nil {
		return nil, rerrors.ConfigurationMissing(application, "application %q not found in %s", application, p.File)
	}
	return []*App{app}, nil
}

// ContainerConfigName returns the template and output file stem for a container.
func (p *Project) ContainerConfigName(container string) string {
	return fmt.Sprintf("%s-%s", p.Name, container)
}

// RepoName extracts the directory name of a repository reference:
// "git@github.com:org/kairos.git" and "kairos" both yield "kairos".
func RepoName(repo string) string {
	name := strings.TrimSuffix(strings.TrimRight(repo, "/"), ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// LoadSettings reads the environment file from dir.
func LoadSettings(dir string) (*Settings, error) {
	for _, name := range EnvFileNames {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var settings Settings
		if err := unmarshal(name, content, &settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if settings.Registry == "" {
			return nil, rerrors.ConfigurationMissing("registry", "registry not found in %s", name)
		}
		if len(settings.Environments) == 0 {
			return nil, rerrors.ConfigurationMissing("environments", "no environments in %s", name)
		}
		for envName, env := range settings.Environments {
			if env == nil {
				return nil, rerrors.ConfigurationMissing(envName, "environment %q is empty in %s", envName, name)
			}
			env.Name = envName
		}
		return &settings, nil
	}

	return nil, rerrors.ConfigurationMissing(EnvFileNames[0], "no environment file in %s", dir)
}

// LoadProject reads a project file from dir.
func LoadProject(dir, file string) (*Project, error) {
	path := filepath.Join(dir, file)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, rerrors.ConfigurationMissing(file, "project file %s not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	project, err := parseProject(file, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	project.File = file
	return project, nil
}

// ParseProject decodes and validates project file content. Content starting
// with "{" is read as JSON, anything else as YAML.
func ParseProject(content []byte) (*Project, error) {
	return parseProject("", content)
}

func parseProject(file string, content []byte) (*Project, error) {
	var project Project
	if err := unmarshal(file, content, &project); err != nil {
		return nil, err
	}

	if project.Name == "" {
		return nil, rerrors.ConfigurationMissing("name", "project has no name")
	}
	if len(project.Apps) == 0 {
		return nil, rerrors.ConfigurationMissing("apps", "project %q declares no apps", project.Name)
	}

	for name, app := range project.Apps {
		if app == nil {
			return nil, rerrors.ConfigurationMissing(name, "app %q is empty", name)
		}
		app.Name = name
		kind, err := ParseSchedulerKind(app.Framework)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", name, err)
		}
		app.kind = kind
		if len(app.Containers) == 0 {
			return nil, rerrors.ConfigurationMissing("containers", "app %q declares no containers", name)
		}
	}

	return &project, nil
}

// unmarshal decodes a configuration file by extension: encoding/json for
// ".json", yaml.v3 for ".yaml" and ".yml". Without a known extension the
// content decides.
func unmarshal(name string, content []byte, v any) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return unmarshalJSON(content, v)
	case ".yaml", ".yml":
		return yaml.Unmarshal(content, v)
	}
	if bytes.HasPrefix(bytes.TrimSpace(content), []byte("{")) {
		return unmarshalJSON(content, v)
	}
	return yaml.Unmarshal(content, v)
}

// unmarshalJSON keeps numbers as json.Number so variables render exactly
// as written.
func unmarshalJSON(content []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	return dec.Decode(v)
}
