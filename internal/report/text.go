package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/xlab/treeprint"

	"github.com/prettymuchbryce/kpicheck/internal/fixer"
	"github.com/prettymuchbryce/kpicheck/internal/scan"
)

const (
	passIcon = "✓"
	failIcon = "✗"
	skipIcon = "⊘"
)

// styles are bound to a renderer so that output to files and pipes stays plain.
type styles struct {
	heading lipgloss.Style
	path    lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
	skip    lipgloss.Style
	detail  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")), // Cyan
		path:    r.NewStyle().Bold(true),
		pass:    r.NewStyle().Foreground(lipgloss.Color("2")), // Green
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")), // Red
		skip:    r.NewStyle().Foreground(lipgloss.Color("3")), // Yellow
		detail:  r.NewStyle().Foreground(lipgloss.Color("8")), // Gray
	}
}

// RenderText writes the report as a tree-style text. Without verbose, only
// files that need attention are listed.
func RenderText(w io.Writer, r *Report, verbose bool) error {
	st := newStyles(w)
	var b strings.Builder

	s := r.Summary
	fmt.Fprintf(&b, "%s\n", st.heading.Render("━━━ KPI self-assessment check ━━━"))
	fmt.Fprintf(&b, "%-13s %s\n", "Generated:", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	if r.Root != "" {
		fmt.Fprintf(&b, "%-13s %s\n", "Directory:", r.Root)
	}
	fmt.Fprintf(&b, "%-13s %d\n", "Files:", s.TotalFiles)
	fmt.Fprintf(&b, "%-13s %d (%.2f%%)\n", "Compliant:", s.Compliant, s.ComplianceRate())
	fmt.Fprintf(&b, "%-13s %d\n", "Missing KPI:", s.NonCompliant)
	fmt.Fprintf(&b, "%-13s %d\n", "Unreadable:", s.Unreadable)
	fmt.Fprintf(&b, "%-13s %s\n", "Average:", s.AverageText())
	if len(s.ScoreDistribution) > 0 {
		var parts []string
		for _, score := range s.Scores() {
			parts = append(parts, fmt.Sprintf("%d×%d", score, s.ScoreDistribution[score]))
		}
		fmt.Fprintf(&b, "%-13s %s\n", "Scores:", strings.Join(parts, ", "))
	}

	if tree := resultTree(st, r, verbose); tree != nil {
		b.WriteString("\n")
		b.WriteString(tree.String())
	} else if !verbose && s.TotalFiles > 0 {
		fmt.Fprintf(&b, "\n%s\n", st.detail.Render("All documents are compliant. Use --verbose to list them."))
	}

	if r.Previews != nil {
		writePreviews(&b, st, r.Previews)
	}
	if r.Fixes != nil {
		writeFixes(&b, st, r.Fixes, r.DryRun)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// resultTree groups results by directory below the report root.
func resultTree(st styles, r *Report, verbose bool) treeprint.Tree {
	root := r.Root
	if root == "" {
		root = "."
	}
	tree := treeprint.NewWithRoot(st.path.Render(root))
	branches := make(map[string]treeprint.Tree)
	added := false

	for _, res := range r.Results {
		if res.Status == scan.StatusCompliant && !verbose {
			continue
		}

		parent := tree
		if rel, err := filepath.Rel(root, filepath.Dir(res.FilePath)); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			branch, ok := branches[rel]
			if !ok {
				branch = tree.AddBranch(filepath.ToSlash(rel))
				branches[rel] = branch
			}
			parent = branch
		}
		parent.AddNode(formatResult(st, res))
		added = true
	}

	if !added {
		return nil
	}
	return tree
}

func formatResult(st styles, res scan.CheckResult) string {
	switch res.Status {
	case scan.StatusCompliant:
		line := fmt.Sprintf("%s %s", res.FileName+":", st.pass.Render(passIcon))
		if res.Score != nil {
			line += fmt.Sprintf(" %d", *res.Score)
		}
		return line + " " + st.detail.Render("("+res.MatchedText+")")
	case scan.StatusNonCompliant:
		return fmt.Sprintf("%s %s missing KPI self-assessment", res.FileName+":", st.fail.Render(failIcon))
	default:
		return fmt.Sprintf("%s %s unreadable %s", res.FileName+":", st.skip.Render(skipIcon), st.detail.Render("("+res.ErrorText()+")"))
	}
}

// RenderPreviews writes the fix preview section.
func RenderPreviews(w io.Writer, previews []fixer.Proposal) error {
	var b strings.Builder
	writePreviews(&b, newStyles(w), previews)
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderFixes writes the outcome of a fix run.
func RenderFixes(w io.Writer, outcomes []fixer.Outcome, dryRun bool) error {
	var b strings.Builder
	writeFixes(&b, newStyles(w), outcomes, dryRun)
	_, err := io.WriteString(w, b.String())
	return err
}

func writePreviews(b *strings.Builder, st styles, previews []fixer.Proposal) {
	fmt.Fprintf(b, "\n%s\n", st.heading.Render("━━━ Fix preview ━━━"))
	if len(previews) == 0 {
		fmt.Fprintf(b, "%s\n", st.detail.Render("  Nothing to fix."))
		return
	}
	for _, p := range previews {
		tree := treeprint.NewWithRoot(st.path.Render(p.FileName))
		tree.AddNode("path:     " + p.FilePath)
		tree.AddNode("append:   " + p.Text)
		tree.AddNode("position: " + p.Position)
		b.WriteString(tree.String())
	}
}

func writeFixes(b *strings.Builder, st styles, outcomes []fixer.Outcome, dryRun bool) {
	title := "━━━ Fixes ━━━"
	if dryRun {
		title = "━━━ Fixes (dry run, nothing was written) ━━━"
	}
	fmt.Fprintf(b, "\n%s\n", st.heading.Render(title))

	attempted, succeeded := 0, 0
	for _, o := range outcomes {
		var status string
		switch {
		case o.Succeeded:
			succeeded++
			status = st.pass.Render(passIcon) + " appended"
			if o.BackupPath != "" {
				status += " " + st.detail.Render("(backup: "+o.BackupPath+")")
			}
		case o.Attempted:
			status = st.fail.Render(failIcon) + " " + string(o.State) + " " + st.detail.Render("("+o.Reason+")")
		default:
			status = st.skip.Render(skipIcon) + " skipped " + st.detail.Render("("+o.Reason+")")
		}
		if o.Attempted {
			attempted++
		}
		fmt.Fprintf(b, "%s %s\n", o.FilePath+":", status)
	}
	fmt.Fprintf(b, "Fixed %d/%d\n", succeeded, attempted)
}
