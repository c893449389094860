package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cameronsjo/roger/internal/fileutil"
)

// Manifest is one rendered container specification.
type Manifest struct {
	// Container is the container name the manifest was rendered for.
	Container string
	// FileName is "<config>-<container>.json".
	FileName string
	// Content is the rendered document.
	Content []byte

	// ID is the manifest "id" with any leading slash removed.
	ID string
	// Name is the manifest "name", used by job definitions.
	Name string
	// Env is the parsed "env" mapping, nil when absent.
	Env map[string]any
	// HasGroups is set when the manifest has a top-level "groups" key.
	HasGroups bool
}

// ParseManifest decodes rendered content and extracts the fields the push
// path needs.
func ParseManifest(container, fileName string, content []byte) (*Manifest, error) {
	doc, err := DecodeDocument(content)
	if err != nil {
		return nil, fmt.Errorf("manifest %s is not a JSON object: %w", fileName, err)
	}

	m := &Manifest{
		Container: container,
		FileName:  fileName,
		Content:   content,
	}

	if id, ok := doc["id"].(string); ok {
		m.ID = strings.TrimPrefix(id, "/")
	}
	if name, ok := doc["name"].(string); ok {
		m.Name = name
	}
	if env, ok := doc["env"].(map[string]any); ok {
		m.Env = env
	}
	_, m.HasGroups = doc["groups"]

	return m, nil
}

// DecodeDocument decodes a JSON object keeping numbers as json.Number, so
// re-encoding the document does not round large integers.
func DecodeDocument(content []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level object")
	}
	if doc == nil {
		return nil, errors.New("document is null")
	}
	return doc, nil
}

// Identifier returns the id used in logs and errors: the manifest id, then
// its name, then the file name.
func (m *Manifest) Identifier() string {
	switch {
	case m.ID != "":
		return m.ID
	case m.Name != "":
		return m.Name
	default:
		return strings.TrimSuffix(m.FileName, TemplateExt)
	}
}

// OutputPath returns <componentsDir>/<env>/<fileName>.
func OutputPath(componentsDir, env, fileName string) string {
	return filepath.Join(componentsDir, env, fileName)
}

// Write stores the manifest at its output path and returns the path.
func Write(componentsDir, env string, m *Manifest) (string, error) {
	path := OutputPath(componentsDir, env, m.FileName)
	if err := fileutil.WriteFileAtomic(path, m.Content, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Read loads a previously written manifest from its output path.
func Read(componentsDir, env, container, fileName string) (*Manifest, error) {
	path := OutputPath(componentsDir, env, fileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseManifest(container, fileName, content)
}
