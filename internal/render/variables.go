// Package render layers configuration variables, renders manifest templates
// and writes the rendered manifests to the components directory.
package render

import (
	"github.com/cameronsjo/roger/internal/config"
)

// Reserved variable names. They are injected after every tier and cannot be
// overridden by configuration.
const (
	VarEnvironment = "environment"
	VarImage       = "image"
)

// MergeVariables flattens the four variable tiers for env, lowest precedence
// first: config global, config environment, app global, app environment.
// The reserved environment and image keys are set last.
func MergeVariables(configVars, appVars config.VariableSet, env, image string) map[string]any {
	tiers := []map[string]any{
		configVars.Global,
		configVars.ForEnv(env),
		appVars.Global,
		appVars.ForEnv(env),
	}

	size := 2
	for _, tier := range tiers {
		size += len(tier)
	}

	merged := make(map[string]any, size)
	for _, tier := range tiers {
		for k, v := range tier {
			merged[k] = v
		}
	}

	merged[VarEnvironment] = env
	merged[VarImage] = image
	return merged
}
