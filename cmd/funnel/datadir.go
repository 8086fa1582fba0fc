// ABOUTME: XDG-based data directory resolution for the funnel CLI.
// ABOUTME: Checks XDG_DATA_HOME, falls back to ~/.local/share/funnel.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir returns the default home for workspaces, the delivery log,
// and the optional funnel.yaml.
func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "funnel"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "funnel"), nil
}

// resolveDataDir prefers an explicit override over the XDG default.
func resolveDataDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return defaultDataDir()
}
