// Package report renders scan results to the console, a text file or a
// spreadsheet.
package report

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/fixer"
	"github.com/prettymuchbryce/kpicheck/internal/scan"
	"github.com/prettymuchbryce/kpicheck/internal/summary"
	"github.com/prettymuchbryce/kpicheck/internal/utils"
)

// Report is everything a sink renders for one run.
type Report struct {
	GeneratedAt time.Time
	Root        string
	Summary     summary.Summary
	Results     []scan.CheckResult
	Fixes       []fixer.Outcome  // nil when no fix ran
	Previews    []fixer.Proposal // nil when no preview was requested
	DryRun      bool
}

// New assembles a report and computes its summary.
func New(now time.Time, root string, results []scan.CheckResult) *Report {
	return &Report{
		GeneratedAt: now,
		Root:        root,
		Summary:     summary.Summarize(results),
		Results:     results,
	}
}

// Generator writes reports in the configured formats.
type Generator struct {
	fs      afero.Fs
	console io.Writer
	cfg     config.ReportConfig
	verbose bool
}

// NewGenerator creates a Generator writing files to afs and console output to console.
func NewGenerator(afs afero.Fs, console io.Writer, cfg config.ReportConfig, verbose bool) *Generator {
	return &Generator{fs: afs, console: console, cfg: cfg, verbose: verbose}
}

// Generate renders r in format. File formats are written below outDir and
// their path is returned; the console format returns "". A spreadsheet that
// cannot be written falls back to the text format.
func (g *Generator) Generate(r *Report, format, outDir string) (string, error) {
	switch format {
	case config.FormatConsole:
		return "", RenderText(g.console, r, g.verbose)

	case config.FormatTxt:
		return g.writeText(r, outDir)

	case config.FormatExcel:
		path, err := g.writeExcel(r, outDir)
		if err == nil {
			return path, nil
		}
		slog.Warn("failed to write excel report, falling back to text", "error", err)
		return g.writeText(r, outDir)

	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

func (g *Generator) writeText(r *Report, outDir string) (string, error) {
	var buf bytes.Buffer
	if err := RenderText(&buf, r, true); err != nil {
		return "", err
	}
	path := g.outputPath(outDir, g.cfg.TxtFilename, r.GeneratedAt)
	return path, g.writeFile(path, buf.Bytes())
}

func (g *Generator) writeExcel(r *Report, outDir string) (string, error) {
	data, err := RenderExcel(r)
	if err != nil {
		return "", err
	}
	path := g.outputPath(outDir, g.cfg.ExcelFilename, r.GeneratedAt)
	return path, g.writeFile(path, data)
}

func (g *Generator) outputPath(outDir, name string, now time.Time) string {
	return filepath.Join(outDir, utils.Template(name).ExpandWithTime(now).String())
}

func (g *Generator) writeFile(path string, data []byte) error {
	if err := g.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	slog.Debug("writing report", "path", path)
	return afero.WriteFile(g.fs, path, data, 0644)
}
