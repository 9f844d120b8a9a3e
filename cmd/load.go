package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"golang.org/x/term"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
)

// loadConfig loads the config file at path. A missing file at the default
// location means the built-in defaults; an explicitly given path must exist.
func loadConfig(e *env, path string, explicit bool) (*config.Config, error) {
	path = pathutil.ExpandTilde(path)

	if !explicit {
		exists, err := afero.Exists(e.fs, path)
		if err != nil {
			return nil, err
		}
		if !exists {
			slog.Debug("no config file, using defaults", "path", path)
			return config.Default(), nil
		}
	}

	cfg, err := config.LoadWithFs(path, e.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("loaded config", "path", path)
	return cfg, nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
