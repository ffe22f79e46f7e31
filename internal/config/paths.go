package config

import (
	"os"
	"path/filepath"
)

// Paths lists the files a pagedesigner installation keeps under its
// home directory.
type Paths struct {
	Home       string // ~/.pagedesigner
	ConfigFile string // Optional TOML configuration
	PagesDB    string // SQLite page store
	Logs       string // Log directory
}

// GetPaths returns the default layout under GetHome.
func GetPaths() Paths {
	home := GetHome()
	return Paths{
		Home:       home,
		ConfigFile: filepath.Join(home, "config.toml"),
		PagesDB:    filepath.Join(home, "pages.db"),
		Logs:       filepath.Join(home, "logs"),
	}
}

// GetHome returns the pagedesigner home directory (~/.pagedesigner).
func GetHome() string {
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".pagedesigner")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirs creates the home and log directories when missing.
func EnsureDirs() (Paths, error) {
	paths := GetPaths()
	for _, dir := range []string{paths.Home, paths.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
