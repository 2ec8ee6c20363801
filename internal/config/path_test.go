package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/boardlog" {
		t.Errorf("Expected /custom/data/boardlog, got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	originalHome := os.Getenv("HOME")
	os.Unsetenv("HOME")
	t.Cleanup(func() {
		if originalHome != "" {
			os.Setenv("HOME", originalHome)
		}
	})

	// We can't easily mock UserHomeDir, so just check the fallback is sane.
	result := DefaultDataDir()
	if result != "./data" {
		t.Errorf("Expected fallback to './data', got %s", result)
	}
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{
			name:     "existing directory",
			path:     ".",
			expected: true,
		},
		{
			name:     "non-existent path",
			path:     "/non/existent/path/that/does/not/exist",
			expected: false,
		},
		{
			name:     "file instead of directory",
			path:     os.Args[0], // current executable
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isDir(tt.path)
			if result != tt.expected {
				t.Errorf("isDir(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

func TestDefaultDataDirCrossPlatform(t *testing.T) {
	result := DefaultDataDir()

	if result == "" {
		t.Error("DefaultDataDir should not return empty string")
	}
	if !filepath.IsAbs(result) && !filepath.HasPrefix(result, "./") {
		t.Errorf("DefaultDataDir should return absolute path or start with ./, got %s", result)
	}
	if result != "./data" && !strings.HasSuffix(result, "boardlog") && !strings.HasSuffix(result, "Boardlog") {
		t.Errorf("DefaultDataDir should name the boardlog directory, got %s", result)
	}
}

func TestDefaultDataDirConsistency(t *testing.T) {
	result1 := DefaultDataDir()
	result2 := DefaultDataDir()

	if result1 != result2 {
		t.Errorf("DefaultDataDir should be consistent, got %s and %s", result1, result2)
	}
}
