package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/fixer"
	"github.com/prettymuchbryce/kpicheck/internal/fs"
	"github.com/prettymuchbryce/kpicheck/internal/history"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
	"github.com/prettymuchbryce/kpicheck/internal/progress"
	"github.com/prettymuchbryce/kpicheck/internal/report"
	"github.com/prettymuchbryce/kpicheck/internal/scan"
)

// checkOptions are the flags of the check command.
type checkOptions struct {
	dir        string
	recursive  bool
	output     string
	format     string
	paragraphs int
	fix        bool
	fixPreview bool
	noBackup   bool
	dryRun     bool
	yes        bool
	history    bool
	verbose    bool
}

var checkOpts checkOptions

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Check documents for a KPI self-assessment and write a report",
	Long: `Check every .docx file in a directory for a KPI self-assessment
sentence in its last paragraphs and write a report.

With --fix, documents without one get the configured template appended,
after a backup copy (<name>.docx.bak) has been made. --fix-preview shows the
text that would be appended, --dry-run performs the fix in memory only.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := checkOpts
		opts.verbose = verbose
		if len(args) == 1 {
			opts.dir = args[0]
		}

		e := defaultEnv()
		cfg, err := loadConfig(e, configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		SetupLogging(logLevel(verbose, cfg.Logging.Level))

		if cmd.Flags().Changed("recursive") {
			cfg.Scan.Recursive = opts.recursive
		}
		return runCheck(ctx, e, cfg, opts)
	},
}

// runCheck scans, optionally fixes, and reports.
func runCheck(ctx context.Context, e *env, cfg *config.Config, opts checkOptions) error {
	if opts.paragraphs > 0 {
		var err error
		if cfg, err = cfg.WithParagraphs(opts.paragraphs); err != nil {
			return err
		}
	}
	format := opts.format
	if format == "" {
		format = cfg.Report.DefaultFormat
	}
	if err := validateFormat(format); err != nil {
		return err
	}
	dir := pathutil.ExpandTilde(opts.dir)
	if dir == "" {
		dir = "."
	}
	output := pathutil.ExpandTilde(opts.output)
	if output == "" {
		output = "."
	}

	results, err := scanDir(ctx, e, cfg, dir)
	if err != nil {
		return err
	}
	startedAt := e.now()
	r := report.New(startedAt, dir, results)

	if opts.fixPreview || opts.fix || cfg.Fixer.Enabled {
		if err := fixResults(ctx, e, cfg, r, opts, output); err != nil {
			return err
		}
	}

	if err := writeReport(e, cfg, r, format, output, opts.verbose); err != nil {
		return err
	}

	if opts.history || cfg.History.Path != "" {
		recordHistory(ctx, cfg, r)
	}
	return nil
}

func validateFormat(format string) error {
	for _, f := range config.Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown report format %q", format)
}

func scanDir(ctx context.Context, e *env, cfg *config.Config, dir string) ([]scan.CheckResult, error) {
	var pm progress.Manager = progress.NoOp{}
	if e.interactive {
		pm = progress.New(true)
	}
	defer pm.Close()

	scanner := scan.New(e.fs, cfg, scan.Options{
		Workers:  cfg.Scan.Workers,
		Exclude:  cfg.Scan.Exclude,
		Progress: pm,
	})
	slog.Info("scanning", "dir", dir, "recursive", cfg.Scan.Recursive)
	return scanner.Scan(ctx, dir, cfg.Scan.Recursive)
}

// fixResults fills in the preview and, unless only a preview was asked for,
// fixes the noncompliant documents and records the run in a manifest.
func fixResults(ctx context.Context, e *env, cfg *config.Config, r *report.Report, opts checkOptions, output string) error {
	if opts.fixPreview {
		previews, err := fixer.New(fs.NewNoop(), cfg.Fixer, fixer.Options{Now: e.now}).Preview(r.Results)
		if err != nil {
			return err
		}
		r.Previews = previews
		return nil
	}

	targets := r.Summary.NonCompliant
	if targets == 0 {
		fmt.Fprintln(e.out, "No documents need fixing.")
		return nil
	}

	filesystem := e.fs
	if opts.dryRun {
		filesystem = fs.NewDryRunOver(e.fs)
	} else if ok, err := confirmFix(e, targets, opts.yes); err != nil {
		return err
	} else if !ok {
		fmt.Fprintln(e.out, "Fix cancelled.")
		return nil
	}

	f := fixer.New(filesystem, cfg.Fixer, fixer.Options{Now: e.now, Workers: cfg.Scan.Workers})
	r.Fixes = f.Fix(ctx, r.Results, !opts.noBackup)
	r.DryRun = opts.dryRun

	manifest := fixer.NewManifest(e.now(), f.Period(), opts.dryRun, r.Fixes)
	if len(manifest.Files) == 0 {
		return nil
	}
	path, err := manifest.Write(e.fs, output)
	if err != nil {
		slog.Warn("failed to write fix manifest", "error", err)
		return nil
	}
	fmt.Fprintf(e.out, "Fixed file list saved to: %s\n", path)
	return nil
}

// confirmFix asks before documents are modified. A non-interactive session
// needs --yes.
func confirmFix(e *env, targets int, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !e.interactive {
		return false, errors.New("refusing to modify documents without --yes in a non-interactive session")
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Append the KPI sentence to %d document(s)", targets),
		IsConfirm: true,
		Stdin:     e.in,
		Stdout:    nopWriteCloser{e.out},
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func writeReport(e *env, cfg *config.Config, r *report.Report, format, output string, verbose bool) error {
	gen := report.NewGenerator(e.fs, e.out, cfg.Report, verbose)
	path, err := gen.Generate(r, format, output)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if path == "" {
		return nil
	}

	s := r.Summary
	fmt.Fprintf(e.out, "Checked %d documents: %d compliant, %d missing KPI, %d unreadable (average %s)\n",
		s.TotalFiles, s.Compliant, s.NonCompliant, s.Unreadable, s.AverageText())
	if r.Previews != nil {
		if err := report.RenderPreviews(e.out, r.Previews); err != nil {
			return err
		}
	}
	if r.Fixes != nil {
		if err := report.RenderFixes(e.out, r.Fixes, r.DryRun); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.out, "Report saved to: %s\n", path)
	return nil
}

// recordHistory stores the run. Failures only warn: the report is already out.
func recordHistory(ctx context.Context, cfg *config.Config, r *report.Report) {
	path, err := historyPath(cfg)
	if err != nil {
		slog.Warn("failed to determine history path", "error", err)
		return
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("failed to open history", "path", path, "error", err)
		return
	}
	defer store.Close()

	fixed := 0
	if !r.DryRun {
		for _, o := range r.Fixes {
			if o.Succeeded {
				fixed++
			}
		}
	}
	root, err := filepath.Abs(r.Root)
	if err != nil {
		root = r.Root
	}
	if _, err := store.RecordRun(ctx, r.GeneratedAt, root, r.Results, fixed); err != nil {
		slog.Warn("failed to record run", "path", path, "error", err)
	}
}

func historyPath(cfg *config.Config) (string, error) {
	if cfg.History.Path != "" {
		return pathutil.ExpandTilde(cfg.History.Path), nil
	}
	return pathutil.DefaultHistoryPath()
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func init() {
	f := checkCmd.Flags()
	f.BoolVarP(&checkOpts.recursive, "recursive", "r", false, "scan subdirectories too")
	f.StringVarP(&checkOpts.output, "output", "o", ".", "report output directory")
	f.StringVarP(&checkOpts.format, "format", "f", "", "report format: console, txt or excel (default from config)")
	f.IntVarP(&checkOpts.paragraphs, "paragraphs", "p", 0, "number of last paragraphs to check (default from config)")
	f.BoolVar(&checkOpts.fix, "fix", false, "append the KPI template to documents that lack one")
	f.BoolVar(&checkOpts.fixPreview, "fix-preview", false, "show what --fix would append without changing anything")
	f.BoolVar(&checkOpts.noBackup, "no-backup", false, "do not keep a .bak copy of fixed documents")
	f.BoolVarP(&checkOpts.dryRun, "dry-run", "n", false, "run the fix in memory without writing documents")
	f.BoolVarP(&checkOpts.yes, "yes", "y", false, "do not ask before fixing")
	f.BoolVar(&checkOpts.history, "history", false, "record the run in the history database")
	checkCmd.MarkFlagsMutuallyExclusive("fix-preview", "fix")
	rootCmd.AddCommand(checkCmd)
}
