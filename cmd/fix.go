package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/fixer"
	"github.com/prettymuchbryce/kpicheck/internal/fs"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
	"github.com/prettymuchbryce/kpicheck/internal/report"
)

type fixOptions struct {
	list     string
	output   string
	noBackup bool
	dryRun   bool
	yes      bool
}

var fixOpts fixOptions

var fixCmd = &cobra.Command{
	Use:   "fix --list <file>",
	Short: "Append the KPI template to the documents named in a list",
	Long: `Append the KPI template to the documents named in a list file, without
scanning. The list is either a YAML/JSON array of paths or a fixed_files.yaml
manifest written by "kpicheck check --fix".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e := defaultEnv()
		cfg, err := loadConfig(e, configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		SetupLogging(logLevel(verbose, cfg.Logging.Level))
		return runFix(ctx, e, cfg, fixOpts)
	},
}

func runFix(ctx context.Context, e *env, cfg *config.Config, opts fixOptions) error {
	if opts.list == "" {
		return errors.New("--list is required")
	}
	paths, err := fixer.LoadFixList(e.fs, pathutil.ExpandTilde(opts.list))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(e.out, "The list names no documents.")
		return nil
	}

	filesystem := e.fs
	if opts.dryRun {
		filesystem = fs.NewDryRunOver(e.fs)
	} else if ok, err := confirmFix(e, len(paths), opts.yes); err != nil {
		return err
	} else if !ok {
		fmt.Fprintln(e.out, "Fix cancelled.")
		return nil
	}

	f := fixer.New(filesystem, cfg.Fixer, fixer.Options{Now: e.now, Workers: cfg.Scan.Workers})
	outcomes := f.FixPaths(ctx, paths, !opts.noBackup)
	if err := report.RenderFixes(e.out, outcomes, opts.dryRun); err != nil {
		return err
	}

	if opts.output != "" {
		manifest := fixer.NewManifest(e.now(), f.Period(), opts.dryRun, outcomes)
		path, err := manifest.Write(e.fs, pathutil.ExpandTilde(opts.output))
		if err != nil {
			return fmt.Errorf("failed to write fix manifest: %w", err)
		}
		fmt.Fprintf(e.out, "Fixed file list saved to: %s\n", path)
	}
	return nil
}

func init() {
	f := fixCmd.Flags()
	f.StringVarP(&fixOpts.list, "list", "l", "", "file listing the documents to fix")
	f.StringVarP(&fixOpts.output, "output", "o", "", "directory to write a fixed_files.yaml manifest to")
	f.BoolVar(&fixOpts.noBackup, "no-backup", false, "do not keep a .bak copy of fixed documents")
	f.BoolVarP(&fixOpts.dryRun, "dry-run", "n", false, "run the fix in memory without writing documents")
	f.BoolVarP(&fixOpts.yes, "yes", "y", false, "do not ask before fixing")
	fixCmd.MarkFlagRequired("list")
	rootCmd.AddCommand(fixCmd)
}
