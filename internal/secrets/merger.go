// Package secrets replaces SECRET placeholders in rendered manifests with
// values from per-environment secret files.
package secrets

import (
	"encoding/json"
	"fmt"
	"sort"

	rerrors "github.com/cameronsjo/roger/internal/errors"
	"github.com/cameronsjo/roger/internal/render"
)

// Sentinel is the placeholder value marking an env entry as secret.
const Sentinel = "SECRET"

// Store maps env variable names to secret values for one
// (environment, container) pair.
type Store map[string]any

// Merger resolves secret placeholders in a rendered manifest.
type Merger interface {
	// Required reports whether env holds any placeholder.
	Required(env map[string]any) bool
	// Merge overlays store onto the manifest env and returns the new
	// content. It fails when a placeholder survives.
	Merge(rendered []byte, store Store) ([]byte, error)
}

// SentinelMerger implements Merger for the literal "SECRET" convention.
type SentinelMerger struct{}

var _ Merger = SentinelMerger{}

// Required implements Merger.
func (SentinelMerger) Required(env map[string]any) bool {
	for _, v := range env {
		if s, ok := v.(string); ok && s == Sentinel {
			return true
		}
	}
	return false
}

// Merge implements Merger. The result is indented JSON with four spaces.
func (SentinelMerger) Merge(rendered []byte, store Store) ([]byte, error) {
	doc, err := render.DecodeDocument(rendered)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	env, _ := doc["env"].(map[string]any)
	if env == nil {
		env = map[string]any{}
	}

	out := rendered
	if len(store) > 0 {
		for k, v := range store {
			env[k] = v
		}
		doc["env"] = env

		out, err = json.MarshalIndent(doc, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("serialize manifest: %w", err)
		}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := env[k].(string); ok && s == Sentinel {
			return nil, rerrors.UnresolvedSecret(k)
		}
	}

	return out, nil
}
