package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/cameronsjo/roger/internal/errors"
)

const envFile = `{
  "registry": "registry.example.com:5000",
  "default": "dev",
  "environments": {
    "dev": {
      "endpoints": {
        "scheduler-apps": "http://marathon.dev:8080/",
        "scheduler-jobs": "http://chronos.dev:4400"
      },
      "telemetry": "statsd.dev:8125"
    },
    "prod": {
      "marathon_endpoint": "http://marathon.prod:8080",
      "chronos_endpoint": "http://chronos.prod:4400"
    }
  },
  "statsd_endpoint": "statsd.global",
  "statsd_port": 8125
}`

const projectFile = `{
  "name": "app",
  "repo": "git@github.com:seomoz/roger-mesos-tools.git",
  "vars": {
    "global": {"cpus": 0.5},
    "environment": {"dev": {"instances": 1}}
  },
  "apps": {
    "grafana_test_app": {
      "containers": ["grafana"]
    },
    "kairos": {
      "framework": "chronos",
      "repo": "kairos",
      "containers": ["kairos-db", "kairos-web"],
      "hooks": {"pre_build": "make deps"},
      "build-args": {"environment": {"dev": {"VERSION": "dev"}}}
    }
  }
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roger-env.json", envFile)

	settings, err := LoadSettings(dir)
	require.NoError(t, err)

	assert.Equal(t, "registry.example.com:5000", settings.Registry)
	assert.Equal(t, "dev", settings.Default)
	require.Len(t, settings.Environments, 2)
	assert.Equal(t, "prod", settings.Environments["prod"].Name)
}

func TestLoadSettings_JSONEscapes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roger-env.json", `{
  "registry": "registry.example.com:5000",
  "registry": "registry.internal:5000",
  "environments": {
    "dev": {"marathon_endpoint": "http:\/\/marathon.dev:8080\/"}
  }
}`)

	settings, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, "registry.internal:5000", settings.Registry, "last duplicate key wins")

	env, err := settings.Environment("dev")
	require.NoError(t, err)
	url, err := env.Endpoint(KindApps)
	require.NoError(t, err)
	assert.Equal(t, "http://marathon.dev:8080", url)
}

func TestLoadSettings_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roger-env.yaml", `
registry: registry.local
environments:
  dev:
    endpoints:
      scheduler-apps: http://apps.local
`)

	settings, err := LoadSettings(dir)
	require.NoError(t, err)

	env, err := settings.Environment("dev")
	require.NoError(t, err)
	url, err := env.Endpoint(KindApps)
	require.NoError(t, err)
	assert.Equal(t, "http://apps.local", url)
}

func TestLoadSettings_Missing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{"no file", "", "roger-env.json"},
		{"no registry", `{"environments": {"dev": {}}}`, "registry"},
		{"no environments", `{"registry": "r"}`, "environments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != "" {
				writeFile(t, dir, "roger-env.json", tt.content)
			}

			_, err := LoadSettings(dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)

			var rerr *rerrors.Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.key, rerr.Key)
		})
	}
}

func TestEnvironment_Endpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roger-env.json", envFile)
	settings, err := LoadSettings(dir)
	require.NoError(t, err)

	tests := []struct {
		env  string
		kind SchedulerKind
		want string
	}{
		{"dev", KindApps, "http://marathon.dev:8080"},
		{"dev", KindJobs, "http://chronos.dev:4400"},
		{"prod", KindApps, "http://marathon.prod:8080"},
		{"prod", KindJobs, "http://chronos.prod:4400"},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+string(tt.kind), func(t *testing.T) {
			env, err := settings.Environment(tt.env)
			require.NoError(t, err)
			got, err := env.Endpoint(tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no endpoint", func(t *testing.T) {
		env := &Environment{Name: "stage"}
		_, err := env.Endpoint(KindJobs)
		assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
	})
}

func TestSettings_TelemetryEndpoint(t *testing.T) {
	settings := &Settings{StatsdEndpoint: "statsd.global", StatsdPort: 8125}

	assert.Equal(t, "statsd.dev:8125", settings.TelemetryEndpoint(&Environment{Telemetry: "statsd.dev:8125"}))
	assert.Equal(t, "statsd.global:8125", settings.TelemetryEndpoint(&Environment{}))
	assert.Equal(t, "", (&Settings{}).TelemetryEndpoint(nil))
}

func TestSettings_SelectEnvironment(t *testing.T) {
	settings := &Settings{
		Default: "dev",
		Environments: map[string]*Environment{
			"dev":   {},
			"stage": {},
			"prod":  {},
		},
	}

	tests := []struct {
		name    string
		flag    string
		fromEnv string
		want    string
	}{
		{"default", "", "", "dev"},
		{"env var over default", "", "stage", "stage"},
		{"flag over env var", "prod", "stage", "prod"},
		{"blank env var ignored", "", "  ", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settings.SelectEnvironment(tt.flag, tt.fromEnv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown environment", func(t *testing.T) {
		_, err := settings.SelectEnvironment("qa", "")
		assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
	})

	t.Run("nothing selected", func(t *testing.T) {
		_, err := (&Settings{}).SelectEnvironment("", "")
		assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
	})
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.json", projectFile)

	project, err := LoadProject(dir, "app.json")
	require.NoError(t, err)

	assert.Equal(t, "app.json", project.File)
	assert.Equal(t, "app", project.Name)
	assert.Equal(t, []string{"grafana_test_app", "kairos"}, project.AppNames())
	assert.Equal(t, json.Number("0.5"), project.Vars.Global["cpus"])
	assert.Equal(t, json.Number("1"), project.Vars.ForEnv("dev")["instances"])
	assert.Nil(t, project.Vars.ForEnv("prod"))

	grafana := project.Apps["grafana_test_app"]
	assert.Equal(t, "grafana_test_app", grafana.Name)
	assert.Equal(t, KindApps, grafana.Kind())
	assert.Equal(t, "git@github.com:seomoz/roger-mesos-tools.git", project.RepoFor(grafana))
	assert.Nil(t, grafana.BuildArgsFor("dev"))

	kairos := project.Apps["kairos"]
	assert.Equal(t, KindJobs, kairos.Kind())
	assert.Equal(t, []string{"kairos-db", "kairos-web"}, kairos.Containers)
	assert.Equal(t, "make deps", kairos.Hooks["pre_build"])
	assert.Equal(t, map[string]string{"VERSION": "dev"}, kairos.BuildArgsFor("dev"))
	assert.Equal(t, "kairos", project.RepoFor(kairos))
}

func TestLoadProject_Formats(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantRepo string
	}{
		{
			name:     "json escaped slashes",
			file:     "app.json",
			content:  `{"name": "app", "repo": "git@github.com:seomoz\/roger.git", "apps": {"a": {"containers": ["c"]}}}`,
			wantRepo: "git@github.com:seomoz/roger.git",
		},
		{
			name:     "json duplicate key",
			file:     "app.json",
			content:  `{"name": "app", "repo": "old", "repo": "new", "apps": {"a": {"containers": ["c"]}}}`,
			wantRepo: "new",
		},
		{
			name:     "yaml",
			file:     "app.yaml",
			content:  "name: app\nrepo: git@github.com:seomoz/roger.git\napps:\n  a:\n    containers: [c]\n",
			wantRepo: "git@github.com:seomoz/roger.git",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)

			project, err := LoadProject(dir, tt.file)
			require.NoError(t, err)
			assert.Equal(t, "app", project.Name)
			assert.Equal(t, tt.wantRepo, project.Repo)
			assert.Equal(t, []string{"c"}, project.Apps["a"].Containers)
		})
	}
}

func TestLoadProject_NotFound(t *testing.T) {
	_, err := LoadProject(t.TempDir(), "missing.json")
	assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
}

func TestParseProject_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"no name", `{"apps": {"a": {"containers": ["c"]}}}`, "no name"},
		{"no apps", `{"name": "app"}`, "no apps"},
		{"no containers", `{"name": "app", "apps": {"a": {}}}`, "no containers"},
		{"bad framework", `{"name": "app", "apps": {"a": {"framework": "nomad", "containers": ["c"]}}}`, "unknown framework"},
		{"escaped slash with missing apps", `{"name": "app", "repo": "git@h:o\/r.git"}`, "no apps"},
		{"malformed json", `{"name": "app",`, "unexpected EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProject([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseProject_EscapedSlash(t *testing.T) {
	project, err := ParseProject([]byte(`{"name":"app","repo":"git@h:o\/r.git","apps":{"a":{"containers":["c"]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "git@h:o/r.git", project.Repo)
	assert.Equal(t, "r", RepoName(project.Repo))
}

func TestProject_Select(t *testing.T) {
	project, err := ParseProject([]byte(projectFile))
	require.NoError(t, err)

	apps, err := project.Select(AllApps)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "grafana_test_app", apps[0].Name)
	assert.Equal(t, "kairos", apps[1].Name)

	apps, err = project.Select("kairos")
	require.NoError(t, err)
	require.Len(t, apps, 1)

	_, err = project.Select("nope")
	assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
}

func TestProject_ContainerConfigName(t *testing.T) {
	project := &Project{Name: "app"}
	assert.Equal(t, "app-grafana", project.ContainerConfigName("grafana"))
}

func TestRepoName(t *testing.T) {
	tests := []struct {
		repo string
		want string
	}{
		{"kairos", "kairos"},
		{"git@github.com:seomoz/roger-mesos-tools.git", "roger-mesos-tools"},
		{"https://github.com/seomoz/roger-mesos-tools", "roger-mesos-tools"},
		{"https://github.com/seomoz/roger-mesos-tools/", "roger-mesos-tools"},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			assert.Equal(t, tt.want, RepoName(tt.repo))
		})
	}
}

func TestParseSchedulerKind(t *testing.T) {
	tests := []struct {
		in   string
		want SchedulerKind
	}{
		{"", KindApps},
		{"marathon", KindApps},
		{"Marathon", KindApps},
		{"scheduler-apps", KindApps},
		{"chronos", KindJobs},
		{"scheduler-jobs", KindJobs},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSchedulerKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirsFromEnv(t *testing.T) {
	vars := map[string]string{
		EnvConfigDir:     "/etc/roger/config",
		EnvTemplatesDir:  "/etc/roger/templates",
		EnvComponentsDir: "/var/roger/components",
		EnvSecretsDir:    "/etc/roger/secrets",
	}
	getenv := func(k string) string { return vars[k] }

	dirs, err := DirsFromEnv(getenv)
	require.NoError(t, err)
	assert.Equal(t, "/etc/roger/config", dirs.Config)
	assert.Equal(t, "/var/roger/components", dirs.Components)
	assert.Empty(t, dirs.Source)

	delete(vars, EnvSecretsDir)
	_, err = DirsFromEnv(getenv)
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrConfigurationMissing)
	assert.Contains(t, err.Error(), EnvSecretsDir)
}
