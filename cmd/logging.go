package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogging configures slog with charmbracelet/log for colorful output on stderr.
func SetupLogging(levelStr string) {
	setupLoggingTo(os.Stderr, levelStr)
}

func setupLoggingTo(w io.Writer, levelStr string) {
	level, err := log.ParseLevel(levelStr)
	if err != nil {
		level = log.InfoLevel
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	slog.SetDefault(slog.New(logger))
}

// logLevel returns the level for a command: --verbose wins over the config.
func logLevel(verbose bool, configured string) string {
	if verbose {
		return "debug"
	}
	if configured == "" {
		return "warn"
	}
	return configured
}
