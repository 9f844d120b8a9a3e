// Package scan finds .docx files below a directory and checks each one for a
// KPI self-assessment sentence.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/docx"
	"github.com/prettymuchbryce/kpicheck/internal/pattern"
	"github.com/prettymuchbryce/kpicheck/internal/progress"
)

// IgnoreFile is the name of the optional gitignore-style file read from the
// scan root.
const IgnoreFile = ".kpiignore"

// lockFilePrefix marks the owner files Word creates next to open documents.
const lockFilePrefix = "~$"

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Status classifies a checked file.
type Status string

const (
	StatusCompliant    Status = "compliant"
	StatusNonCompliant Status = "noncompliant"
	StatusUnreadable   Status = "unreadable"
)

// CheckResult is the outcome of checking one file.
type CheckResult struct {
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	Status      Status `json:"status"`
	HasKPI      bool   `json:"has_kpi"`
	Score       *int   `json:"score,omitempty"`
	MatchedText string `json:"matched_text,omitempty"`
	Year        *int   `json:"year,omitempty"`
	Quarter     *int   `json:"quarter,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Err         error  `json:"-"`
}

// ErrorText returns the failure message of an unreadable result, or "".
func (r CheckResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Options tune a Scanner.
type Options struct {
	Workers  int              // parallel checks, 0 means one per CPU
	Exclude  []string         // doublestar globs matched against root-relative paths
	Progress progress.Manager // nil disables progress output
}

// Scanner checks documents against the configured patterns.
type Scanner struct {
	fs       afero.Fs
	adapter  *docx.Adapter
	engine   *pattern.Engine
	tail     int
	workers  int
	exclude  []string
	progress progress.Manager
}

// New creates a Scanner reading from afs. cfg must have passed Validate.
func New(afs afero.Fs, cfg *config.Config, opts Options) *Scanner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pm := opts.Progress
	if pm == nil {
		pm = progress.NoOp{}
	}
	return &Scanner{
		fs:       afs,
		adapter:  docx.NewAdapter(afs),
		engine:   pattern.NewEngine(cfg.Patterns()),
		tail:     cfg.CheckLastParagraphs,
		workers:  workers,
		exclude:  opts.Exclude,
		progress: pm,
	}
}

// Scan collects the documents below root and checks them.
// The only error is an unusable root; per-file failures are unreadable results.
func (s *Scanner) Scan(ctx context.Context, root string, recursive bool) ([]CheckResult, error) {
	paths, err := s.Collect(root, recursive)
	if err != nil {
		return nil, err
	}
	slog.Info("scanning documents", "root", root, "files", len(paths), "recursive", recursive)
	return s.CheckFiles(ctx, paths), nil
}

// Collect returns the .docx files below root in lexical order. Word lock
// files, excluded paths and paths matched by the root's .kpiignore are
// skipped.
func (s *Scanner) Collect(root string, recursive bool) ([]string, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s: %w", root, ErrNotDirectory)
	}

	ignored := s.loadIgnore(root)
	keep := func(rel string, isDir bool) bool {
		ignorePath := rel
		if isDir {
			ignorePath += "/"
		}
		if ignored != nil && ignored.MatchesPath(ignorePath) {
			return false
		}
		if s.excluded(rel) {
			return false
		}
		if isDir {
			return true
		}
		return isDocument(rel)
	}

	snapshot := BuildSnapshot(s.fs, root, recursive, keep)
	if snapshot == nil {
		return nil, fmt.Errorf("scan root %s: unreadable", root)
	}
	files := snapshot.Files(root)
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) loadIgnore(root string) *ignore.GitIgnore {
	data, err := afero.ReadFile(s.fs, filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil
	}
	slog.Debug("using ignore file", "path", filepath.Join(root, IgnoreFile))
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}

func (s *Scanner) excluded(rel string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, glob := range s.exclude {
		target := rel
		if !strings.Contains(glob, "/") {
			target = base
		}
		if ok, _ := doublestar.Match(glob, target); ok {
			return true
		}
	}
	return false
}

func isDocument(rel string) bool {
	name := rel[strings.LastIndex(rel, "/")+1:]
	if strings.HasPrefix(name, lockFilePrefix) {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), docx.Extension)
}

// CheckFiles checks paths on a bounded worker pool. The result at index i
// belongs to paths[i]. Files not started before ctx is cancelled are reported
// as unreadable with the context error.
func (s *Scanner) CheckFiles(ctx context.Context, paths []string) []CheckResult {
	results := make([]CheckResult, len(paths))
	task := s.progress.StartTask("checking", len(paths))
	defer task.Complete()

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			defer task.Increment(1)
			if err := ctx.Err(); err != nil {
				results[i] = unreadable(path, err)
				return nil
			}
			results[i] = s.CheckFile(path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CheckFile checks one document. Its last paragraphs are tried in order and
// the first one matching any pattern decides the result.
func (s *Scanner) CheckFile(path string) CheckResult {
	paragraphs, err := s.adapter.ReadTailParagraphs(path, s.tail)
	if err != nil {
		slog.Warn("failed to read document", "path", path, "error", err)
		return unreadable(path, err)
	}

	for _, p := range paragraphs {
		m, ok := s.engine.Match(p)
		if !ok {
			continue
		}
		slog.Debug("kpi sentence found", "path", path, "score", m.Score, "pattern", m.Pattern)
		score := m.Score
		return CheckResult{
			FileName:    filepath.Base(path),
			FilePath:    path,
			Status:      StatusCompliant,
			HasKPI:      true,
			Score:       &score,
			MatchedText: m.Text,
			Year:        m.Year,
			Quarter:     m.Quarter,
			Pattern:     m.Source,
		}
	}

	return CheckResult{
		FileName: filepath.Base(path),
		FilePath: path,
		Status:   StatusNonCompliant,
	}
}

func unreadable(path string, err error) CheckResult {
	return CheckResult{
		FileName: filepath.Base(path),
		FilePath: path,
		Status:   StatusUnreadable,
		Err:      err,
	}
}
