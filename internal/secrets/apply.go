package secrets

import (
	"context"

	"github.com/cameronsjo/roger/internal/render"
)

// Apply resolves placeholders in m when it has any. The store is loaded
// only in that case. merged reports whether m was rewritten.
func Apply(ctx context.Context, loader Loader, merger Merger, env string, m *render.Manifest) (out *render.Manifest, merged bool, err error) {
	if !merger.Required(m.Env) {
		return m, false, nil
	}

	store, err := loader.Load(ctx, env, m.FileName)
	if err != nil {
		return nil, false, err
	}

	content, err := merger.Merge(m.Content, store)
	if err != nil {
		return nil, false, err
	}

	out, err = render.ParseManifest(m.Container, m.FileName, content)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
