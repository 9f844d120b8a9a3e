package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/history"
	"github.com/prettymuchbryce/kpicheck/internal/scan"
)

type historyOptions struct {
	limit int
	run   int64
}

var historyOpts historyOptions

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded check runs",
	Long: `List the runs recorded with "kpicheck check --history" (or with
history.path set in the config), newest first. --run shows the documents of
one run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e := defaultEnv()
		cfg, err := loadConfig(e, configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		SetupLogging(logLevel(verbose, cfg.Logging.Level))
		return runHistory(cmd.Context(), e, cfg, historyOpts)
	},
}

func runHistory(ctx context.Context, e *env, cfg *config.Config, opts historyOptions) error {
	path, err := historyPath(cfg)
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	st := newCmdStyles(e.out)
	if opts.run > 0 {
		files, err := store.Files(ctx, opts.run)
		if err != nil {
			return err
		}
		printRunFiles(e.out, st, opts.run, files)
		return nil
	}

	runs, err := store.RecentRuns(ctx, opts.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.out, st.dim.Render("No runs recorded in "+path))
		return nil
	}
	for _, r := range runs {
		printRun(e.out, st, r, e.now())
	}
	return nil
}

// cmdStyles are the styles of command output, bound to its writer.
type cmdStyles struct {
	dim       lipgloss.Style
	highlight lipgloss.Style
	bold      lipgloss.Style
	label     lipgloss.Style
	box       lipgloss.Style
}

func newCmdStyles(w io.Writer) cmdStyles {
	r := lipgloss.NewRenderer(w)
	return cmdStyles{
		dim:       r.NewStyle().Foreground(lipgloss.Color("8")),
		highlight: r.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		bold:      r.NewStyle().Bold(true),
		label:     r.NewStyle().Width(12),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("2")).
			Padding(0, 4),
	}
}

func printRun(w io.Writer, st cmdStyles, r history.Run, now time.Time) {
	avg := "N/A"
	if r.AverageScore != nil {
		avg = fmt.Sprintf("%.2f", *r.AverageScore)
	}
	fmt.Fprintf(w, "%s %s %s\n",
		st.highlight.Render(fmt.Sprintf("#%d", r.ID)),
		st.bold.Render(r.Root),
		st.dim.Render(formatTimeAgo(now.Sub(r.StartedAt))),
	)
	fmt.Fprintf(w, "  %d files: %d ✓  %d ✗  %d ⊘  average %s", r.Total, r.Compliant, r.NonCompliant, r.Unreadable, avg)
	if r.Fixed > 0 {
		fmt.Fprintf(w, "  fixed %d", r.Fixed)
	}
	fmt.Fprintln(w)
}

func printRunFiles(w io.Writer, st cmdStyles, id int64, files []history.File) {
	if len(files) == 0 {
		fmt.Fprintln(w, st.dim.Render(fmt.Sprintf("Run #%d has no documents", id)))
		return
	}
	for _, f := range files {
		var icon string
		switch f.Status {
		case scan.StatusCompliant:
			icon = "✓"
		case scan.StatusNonCompliant:
			icon = "✗"
		default:
			icon = "⊘"
		}
		line := fmt.Sprintf("%s %s", icon, f.Path)
		if f.Score != nil {
			line += st.dim.Render(fmt.Sprintf(" (%d)", *f.Score))
		}
		fmt.Fprintln(w, line)
	}
}

// formatTimeAgo formats an elapsed duration as a human-readable relative time.
func formatTimeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().Int64Var(&historyOpts.run, "run", 0, "list the documents of this run")
	rootCmd.AddCommand(historyCmd)
}
