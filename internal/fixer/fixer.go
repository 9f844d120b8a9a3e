// Package fixer appends the templated KPI sentence to noncompliant documents,
// taking a backup of each one first.
package fixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/docx"
	"github.com/prettymuchbryce/kpicheck/internal/fs"
	"github.com/prettymuchbryce/kpicheck/internal/scan"
	"github.com/prettymuchbryce/kpicheck/internal/utils"
)

// PositionEnd is where proposals are placed in the document.
const PositionEnd = "end of document"

// Error is a failed step of a fix.
type Error struct {
	Path  string
	Stage string // render, backup, open, append, persist, restore
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fix %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Outcome records what happened to one file submitted to Fix.
type Outcome struct {
	FilePath   string `yaml:"file_path" json:"file_path"`
	Attempted  bool   `yaml:"attempted" json:"attempted"`
	Succeeded  bool   `yaml:"succeeded" json:"succeeded"`
	BackupPath string `yaml:"backup_path,omitempty" json:"backup_path,omitempty"`
	Reason     string `yaml:"reason,omitempty" json:"reason,omitempty"`
	State      State  `yaml:"state" json:"state"`
	Text       string `yaml:"text,omitempty" json:"text,omitempty"`
	Err        error  `yaml:"-" json:"-"`
}

// Proposal is the change Fix would make to one file.
type Proposal struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	Text     string `json:"text"`
	Position string `json:"position"`
}

// Options tune a Fixer.
type Options struct {
	Now     func() time.Time // clock for the reporting period, defaults to time.Now
	Workers int              // parallel fixes, 0 means one per CPU
}

// Fixer appends the rendered template to documents on a FileSystem.
type Fixer struct {
	fs            fs.FileSystem
	adapter       *docx.Adapter
	template      utils.Template
	quarterFormat string
	period        Period
	workers       int

	locks    pathLocks
	backupMu sync.Mutex
}

// New creates a Fixer. The reporting period is taken from the clock once, so
// every file in a run gets the same text.
func New(filesystem fs.FileSystem, cfg config.FixerConfig, opts Options) *Fixer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Fixer{
		fs:            filesystem,
		adapter:       docx.NewAdapter(filesystem),
		template:      utils.Template(cfg.Template),
		quarterFormat: cfg.QuarterFormat,
		period:        PeriodOf(now()),
		workers:       workers,
	}
}

// Period returns the reporting period used in rendered text.
func (f *Fixer) Period() Period {
	return f.period
}

// Render returns the sentence that will be appended.
func (f *Fixer) Render() (string, error) {
	text := f.template.Expand(map[string]string{
		"year":    fmt.Sprint(f.period.Year),
		"quarter": f.period.QuarterName(f.quarterFormat),
	})
	if left := text.Variables(); len(left) > 0 {
		return "", fmt.Errorf("template has unknown placeholder {%s}", left[0])
	}
	return text.String(), nil
}

// Preview returns the proposal for every noncompliant result without touching
// any file.
func (f *Fixer) Preview(results []scan.CheckResult) ([]Proposal, error) {
	text, err := f.Render()
	if err != nil {
		return nil, err
	}
	var proposals []Proposal
	for _, r := range results {
		if r.Status != scan.StatusNonCompliant {
			continue
		}
		proposals = append(proposals, Proposal{
			FilePath: r.FilePath,
			FileName: r.FileName,
			Text:     text,
			Position: PositionEnd,
		})
	}
	return proposals, nil
}

// Fix fixes the noncompliant results. Compliant and unreadable results are
// reported as not attempted. The outcome at index i belongs to results[i].
func (f *Fixer) Fix(ctx context.Context, results []scan.CheckResult, backup bool) []Outcome {
	items := make([]item, len(results))
	for i, r := range results {
		items[i] = item{path: r.FilePath}
		switch r.Status {
		case scan.StatusCompliant:
			items[i].skip = "already compliant"
		case scan.StatusUnreadable:
			items[i].skip = "document is unreadable"
		}
	}
	return f.run(ctx, items, backup)
}

// FixPaths fixes the given files without checking them first.
func (f *Fixer) FixPaths(ctx context.Context, paths []string, backup bool) []Outcome {
	items := make([]item, len(paths))
	for i, p := range paths {
		items[i] = item{path: p}
	}
	return f.run(ctx, items, backup)
}

type item struct {
	path string
	skip string
}

func (f *Fixer) run(ctx context.Context, items []item, backup bool) []Outcome {
	outcomes := make([]Outcome, len(items))

	seen := make(map[string]bool, len(items))
	for i := range items {
		key := filepath.Clean(items[i].path)
		if seen[key] && items[i].skip == "" {
			items[i].skip = "duplicate path in batch"
		}
		seen[key] = true
	}

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, it := range items {
		if it.skip != "" {
			outcomes[i] = skipped(it.path, it.skip)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = skipped(it.path, err.Error())
				return nil
			}
			outcomes[i] = f.FixFile(it.path, backup)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func skipped(path, reason string) Outcome {
	return Outcome{FilePath: path, State: StateSkipped, Reason: reason}
}

// FixFile backs up path when backup is set, appends the rendered sentence and
// saves the document. It runs to a terminal state once started; failures are
// recorded in the Outcome.
func (f *Fixer) FixFile(path string, backup bool) Outcome {
	unlock := f.locks.lock(path)
	defer unlock()

	m := newMachine()
	o := Outcome{FilePath: path, Attempted: true}
	fail := func(next State, stage string, err error) Outcome {
		m.to(next)
		o.State = m.state
		o.Err = &Error{Path: path, Stage: stage, Err: err}
		o.Reason = o.Err.Error()
		slog.Warn("fix failed", "path", path, "stage", stage, "error", err)
		return o
	}

	text, err := f.Render()
	if err != nil {
		return fail(StateFailed, "render", err)
	}
	o.Text = text

	if backup {
		backupPath, err := f.backup(path)
		if err != nil {
			return fail(StateBackupFailed, "backup", err)
		}
		m.to(StateBackedUp)
		o.BackupPath = backupPath
	}

	doc, err := f.adapter.Open(path)
	if err != nil {
		return fail(StateFailed, "open", err)
	}
	defer doc.Close()

	if err := doc.AppendParagraph(text); err != nil {
		return fail(StateFailed, "append", err)
	}
	m.to(StateAppended)

	if err := doc.Save(f.fs, path); err != nil {
		return fail(StatePersistFailed, "persist", err)
	}
	m.to(StatePersisted)

	o.State = m.state
	o.Succeeded = true
	slog.Info("fixed document", "path", path, "backup", o.BackupPath)
	return o
}

// backup copies path to a free sibling backup name and checks the copy.
// Backup names can collide across documents (a.docx.bak taken makes a.docx
// use a_2.docx.bak), so resolving and creating happen under one lock.
func (f *Fixer) backup(path string) (string, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", err
	}

	f.backupMu.Lock()
	defer f.backupMu.Unlock()

	dest, proceed, err := f.fs.ResolveConflict(fs.ConflictRenameWithSuffix, fs.BackupPath(path))
	if err != nil {
		return "", err
	}
	if !proceed {
		return "", errors.New("no free backup path")
	}

	if err := f.fs.Copy(path, dest); err != nil {
		_ = f.fs.Remove(dest)
		return "", err
	}

	copied, err := f.fs.Stat(dest)
	if err != nil {
		return "", fmt.Errorf("verify backup %s: %w", dest, err)
	}
	if copied.Size() != info.Size() {
		return "", fmt.Errorf("verify backup %s: size %d, want %d", dest, copied.Size(), info.Size())
	}
	return dest, nil
}

// Restore replaces path with the content of backupPath. An empty backupPath
// means the conventional <path>.bak.
func (f *Fixer) Restore(path, backupPath string) error {
	if backupPath == "" {
		backupPath = fs.BackupPath(path)
	}

	unlock := f.locks.lock(path)
	defer unlock()

	if _, err := f.fs.Stat(backupPath); err != nil {
		return &Error{Path: path, Stage: "restore", Err: err}
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".restore.tmp")
	if err := f.fs.Copy(backupPath, tmp); err != nil {
		_ = f.fs.Remove(tmp)
		return &Error{Path: path, Stage: "restore", Err: err}
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return &Error{Path: path, Stage: "restore", Err: err}
	}
	slog.Info("restored document", "path", path, "backup", backupPath)
	return nil
}

// pathLocks serialises work on the same path.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *pathLocks) lock(path string) func() {
	key := filepath.Clean(path)

	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
