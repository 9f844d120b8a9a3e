package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/fixer"
	"github.com/prettymuchbryce/kpicheck/internal/pathutil"
)

type restoreOptions struct {
	list   string
	backup string
}

var restoreOpts restoreOptions

var restoreCmd = &cobra.Command{
	Use:   "restore [file...]",
	Short: "Put back documents from their backup copies",
	Long: `Replace fixed documents with their backup copies. Either name the
documents (their <name>.docx.bak is used) or pass the fixed_files.yaml
manifest of a fix run with --list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := defaultEnv()
		cfg, err := loadConfig(e, configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		SetupLogging(logLevel(verbose, cfg.Logging.Level))
		return runRestore(e, cfg, restoreOpts, args)
	},
}

// restoreTarget is a document and the backup to restore it from.
type restoreTarget struct {
	path   string
	backup string
}

func runRestore(e *env, cfg *config.Config, opts restoreOptions, args []string) error {
	targets, err := restoreTargets(e, opts, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(e.out, "Nothing to restore.")
		return nil
	}

	f := fixer.New(e.fs, cfg.Fixer, fixer.Options{Now: e.now})
	failed := 0
	for _, t := range targets {
		if err := f.Restore(t.path, t.backup); err != nil {
			failed++
			fmt.Fprintf(e.out, "%s: ✗ %v\n", t.path, err)
			continue
		}
		fmt.Fprintf(e.out, "%s: ✓ restored\n", t.path)
	}
	fmt.Fprintf(e.out, "Restored %d/%d\n", len(targets)-failed, len(targets))
	if failed > 0 {
		return fmt.Errorf("%d document(s) could not be restored", failed)
	}
	return nil
}

func restoreTargets(e *env, opts restoreOptions, args []string) ([]restoreTarget, error) {
	switch {
	case opts.list != "" && len(args) > 0:
		return nil, errors.New("pass either --list or file arguments, not both")
	case opts.backup != "" && len(args) != 1:
		return nil, errors.New("--backup needs exactly one file argument")
	case opts.list == "" && len(args) == 0:
		return nil, errors.New("nothing to restore: pass files or --list")
	}

	if opts.list == "" {
		var targets []restoreTarget
		for _, arg := range args {
			targets = append(targets, restoreTarget{path: pathutil.ExpandTilde(arg), backup: pathutil.ExpandTilde(opts.backup)})
		}
		return targets, nil
	}

	m, err := fixer.ReadManifest(e.fs, pathutil.ExpandTilde(opts.list))
	if err != nil {
		return nil, err
	}
	if m.DryRun {
		return nil, errors.New("the manifest records a dry run, no document was changed")
	}
	var targets []restoreTarget
	for _, entry := range m.Files {
		if !entry.Succeeded {
			continue
		}
		if entry.Backup == "" {
			fmt.Fprintf(e.out, "%s: ⊘ fixed without backup, skipping\n", entry.Path)
			continue
		}
		targets = append(targets, restoreTarget{path: entry.Path, backup: entry.Backup})
	}
	return targets, nil
}

func init() {
	restoreCmd.Flags().StringVarP(&restoreOpts.list, "list", "l", "", "fixed_files.yaml manifest of a fix run")
	restoreCmd.Flags().StringVar(&restoreOpts.backup, "backup", "", "backup file to restore from (default <file>.bak)")
	rootCmd.AddCommand(restoreCmd)
}
