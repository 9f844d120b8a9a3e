package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot get home directory")
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "just tilde",
			input:    "~",
			expected: home,
		},
		{
			name:     "tilde with path",
			input:    "~/foo/bar",
			expected: filepath.Join(home, "foo", "bar"),
		},
		{
			name:     "tilde with document path",
			input:    "~/kpi/2026Q4/a.docx",
			expected: filepath.Join(home, "kpi", "2026Q4", "a.docx"),
		},
		{
			name:     "absolute path unchanged",
			input:    "/absolute/path",
			expected: "/absolute/path",
		},
		{
			name:     "relative path unchanged",
			input:    "relative/path",
			expected: "relative/path",
		},
		{
			name:     "tilde not at start unchanged",
			input:    "/foo/~/bar",
			expected: "/foo/~/bar",
		},
		{
			name:     "empty string unchanged",
			input:    "",
			expected: "",
		},
		{
			name:     "other user unchanged",
			input:    "~alice/kpi",
			expected: "~alice/kpi",
		},
		{
			name:     "tilde in middle unchanged",
			input:    "some~path",
			expected: "some~path",
		},
		{
			name:     "just tilde slash",
			input:    "~/",
			expected: home,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandTilde(tt.input)
			if got != tt.expected {
				t.Errorf("ExpandTilde(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultPaths(t *testing.T) {
	dir, err := AppDir()
	if err != nil {
		t.Skip("cannot get home directory")
	}

	cfg, err := DefaultConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	hist, err := DefaultHistoryPath()
	if err != nil {
		t.Fatal(err)
	}

	if cfg != filepath.Join(dir, "config.json") {
		t.Errorf("DefaultConfigPath() = %q", cfg)
	}
	if hist != filepath.Join(dir, "history.db") {
		t.Errorf("DefaultHistoryPath() = %q", hist)
	}
	if filepath.Base(dir) != "kpicheck" {
		t.Errorf("AppDir() = %q, want a kpicheck directory", dir)
	}
}
