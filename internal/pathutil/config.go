package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "kpicheck"

// AppDir returns the platform-appropriate directory for kpicheck's own files.
func AppDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("APPDATA not set and cannot determine home directory: %w", err)
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultHistoryPath returns the default location of the run history database.
func DefaultHistoryPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// MustDefaultConfigPath returns DefaultConfigPath or panics on error.
// Use this only for flag defaults where error handling isn't possible.
func MustDefaultConfigPath() string {
	path, err := DefaultConfigPath()
	if err != nil {
		panic(fmt.Sprintf("failed to determine default config path: %v", err))
	}
	return path
}
