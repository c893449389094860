package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/cameronsjo/roger/internal/config"
	rerrors "github.com/cameronsjo/roger/internal/errors"
)

// TemplateExt is the extension of manifest templates and rendered files.
const TemplateExt = ".json"

// missingKeyPattern extracts the key from text/template's missingkey=error message.
var missingKeyPattern = regexp.MustCompile(`map has no entry for key "([^"]+)"`)

// Renderer renders manifest templates with sprig functions. References to
// variables that are not set fail instead of rendering "<no value>".
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{funcs: sprig.TxtFuncMap()}
}

// Render executes source as a template named name against vars.
func (r *Renderer) Render(name string, source []byte, vars map[string]any) ([]byte, error) {
	tmpl, err := template.New(name).
		Funcs(r.funcs).
		Option("missingkey=error").
		Parse(string(source))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		if m := missingKeyPattern.FindStringSubmatch(err.Error()); m != nil {
			return nil, rerrors.UnresolvedVariable(m[1], name)
		}
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// RenderFile renders <dir>/<fileName> against vars.
func (r *Renderer) RenderFile(dir, fileName string, vars map[string]any) ([]byte, error) {
	path := filepath.Join(dir, fileName)
	source, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, rerrors.ConfigurationMissing(fileName, "template %s not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	return r.Render(fileName, source, vars)
}

// TemplateDir returns the directory an app's templates are read from: the
// app's template_path inside its checkout when set, otherwise sharedDir.
func TemplateDir(sharedDir, workDir, repo string, app *config.App) string {
	if app.TemplatePath == "" {
		return sharedDir
	}
	return filepath.Join(workDir, config.RepoName(repo), app.TemplatePath)
}

// FileName returns the template and output file name for a container.
func FileName(project *config.Project, container string) string {
	return project.ContainerConfigName(container) + TemplateExt
}
