package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
	"github.com/prettymuchbryce/kpicheck/internal/watcher"
)

type watchOptions struct {
	recursive bool
	output    string
	format    string
	debounce  time.Duration
	history   bool
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Check a directory and check again whenever a document changes",
	Long: `Run a check, then keep watching the directory and run it again once
documents have stopped changing for the debounce period.

Handles SIGINT/SIGTERM for graceful shutdown and notifies systemd when
ready, so it can run as a service.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e := defaultEnv()
		e.interactive = false
		cfg, err := loadConfig(e, configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		SetupLogging(logLevel(verbose, cfg.Logging.Level))

		if cmd.Flags().Changed("recursive") {
			cfg.Scan.Recursive = watchOpts.recursive
		}
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runWatch(ctx, e, cfg, dir, watchOpts)
	},
}

func runWatch(ctx context.Context, e *env, cfg *config.Config, dir string, opts watchOptions) error {
	dir = pathutil.ExpandTilde(dir)
	check := checkOptions{
		dir:     dir,
		output:  opts.output,
		format:  opts.format,
		history: opts.history,
		verbose: verbose,
	}

	if err := runCheck(ctx, e, cfg, check); err != nil {
		return err
	}

	w, err := watcher.New(e.fs, dir, watcher.Options{
		Recursive: cfg.Scan.Recursive,
		Debounce:  opts.debounce,
		Cooldown:  time.Second,
	}, func(ctx context.Context) error {
		return runCheck(ctx, e, cfg, check)
	})
	if err != nil {
		return err
	}

	// No-op outside systemd.
	daemon.SdNotify(false, daemon.SdNotifyReady)
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	slog.Info("watching for changes", "dir", dir)
	return w.Run(ctx)
}

func init() {
	f := watchCmd.Flags()
	f.BoolVarP(&watchOpts.recursive, "recursive", "r", false, "watch and scan subdirectories too")
	f.StringVarP(&watchOpts.output, "output", "o", ".", "report output directory")
	f.StringVarP(&watchOpts.format, "format", "f", config.FormatConsole, "report format: console, txt or excel")
	f.DurationVar(&watchOpts.debounce, "debounce", 2*time.Second, "quiet period before checking again")
	f.BoolVar(&watchOpts.history, "history", false, "record every run in the history database")
	rootCmd.AddCommand(watchCmd)
}
