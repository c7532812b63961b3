// Package config loads checklists and resolves the paths verify reads and writes.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "verify"

// ExpandPath expands a leading ~ and $VAR references. Other paths are returned as given.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return path
	case path == "~" || strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// ConfigDir is where config.yaml is looked up: $XDG_CONFIG_HOME/verify, falling back to
// ~/.config/verify.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir holds the run index: $XDG_DATA_HOME/verify, falling back to
// ~/.local/share/verify.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// DefaultDatabasePath is the run index used when database.path is unset.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), "runs.db")
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); filepath.IsAbs(base) {
		return filepath.Join(base, appName)
	}
	return filepath.Join(ExpandPath("~"), fallback, appName)
}
