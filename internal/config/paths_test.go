package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetHome(t *testing.T) {
	home := GetHome()

	userHome, _ := os.UserHomeDir()
	expected := filepath.Join(userHome, ".pagedesigner")

	if home != expected {
		t.Errorf("GetHome() = %s; want %s", home, expected)
	}
}

func TestGetPaths(t *testing.T) {
	paths := GetPaths()

	if !strings.HasSuffix(paths.ConfigFile, ".pagedesigner/config.toml") {
		t.Errorf("ConfigFile path incorrect: %s", paths.ConfigFile)
	}
	if !strings.HasSuffix(paths.PagesDB, ".pagedesigner/pages.db") {
		t.Errorf("PagesDB path incorrect: %s", paths.PagesDB)
	}
	if !strings.HasSuffix(paths.Logs, ".pagedesigner/logs") {
		t.Errorf("Logs path incorrect: %s", paths.Logs)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExpandPath(tt.input); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	paths, err := EnsureDirs()
	if err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{paths.Home, paths.Logs} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}
