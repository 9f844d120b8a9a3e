package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
)

//go:embed default.json
var defaultConfigContent string

// DefaultContent returns the built-in configuration file as written by
// EnsureDefaultConfig.
func DefaultContent() string {
	return defaultConfigContent
}

// EnsureDefaultConfig creates the default config file if it doesn't exist.
// Returns the expanded path and whether a file was written.
func EnsureDefaultConfig(afs afero.Fs, configPath string) (string, bool, error) {
	expanded := pathutil.ExpandTilde(configPath)

	if exists, err := afero.Exists(afs, expanded); err != nil {
		return "", false, err
	} else if exists {
		return expanded, false, nil
	}

	dir := filepath.Dir(expanded)
	if err := afs.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	if err := afero.WriteFile(afs, expanded, []byte(defaultConfigContent), 0644); err != nil {
		return "", false, fmt.Errorf("failed to create default config %s: %w", expanded, err)
	}

	slog.Info("created default config", "path", expanded)
	return expanded, true, nil
}

// IsDefaultConfig checks if the file at the given path matches the default config.
func IsDefaultConfig(afs afero.Fs, path string) bool {
	content, err := afero.ReadFile(afs, path)
	if err != nil {
		return false
	}
	return string(content) == defaultConfigContent
}

// Marshal renders c as indented JSON in the config file layout.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
