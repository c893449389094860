package cmd

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/roger/internal/config"
)

// completeProjectArgs completes the project file for the first argument and
// its application names, plus "all", for the second.
func completeProjectArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	dir := os.Getenv(config.EnvConfigDir)
	if dir == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	switch len(args) {
	case 0:
		return projectFiles(dir), cobra.ShellCompDirectiveNoFileComp
	case 1:
		project, err := config.LoadProject(dir, args[0])
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return append(project.AppNames(), config.AllApps), cobra.ShellCompDirectiveNoFileComp
	default:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

// projectFiles lists the project files in dir, skipping the environment file.
func projectFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || slices.Contains(config.EnvFileNames, e.Name()) {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	return files
}
