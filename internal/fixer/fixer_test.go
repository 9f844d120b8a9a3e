package fixer

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/prettymuchbryce/kpicheck/internal/config"
	"github.com/prettymuchbryce/kpicheck/internal/docx"
	"github.com/prettymuchbryce/kpicheck/internal/fs"
	"github.com/prettymuchbryce/kpicheck/internal/scan"
	"github.com/prettymuchbryce/kpicheck/internal/testutil"
)

var fixedNow = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.Local)

const wantText = "2026年第四季度KPI考核自评__分。"

func newFixer(filesystem fs.FileSystem) *Fixer {
	return New(filesystem, config.Default().Fixer, Options{
		Now:     func() time.Time { return fixedNow },
		Workers: 2,
	})
}

func paragraphs(t *testing.T, afs afero.Fs, path string) []string {
	t.Helper()
	doc, err := docx.Open(afs, path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer doc.Close()
	return doc.Paragraphs()
}

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		month   time.Month
		quarter int
		chinese string
	}{
		{time.January, 1, "一"},
		{time.March, 1, "一"},
		{time.April, 2, "二"},
		{time.September, 3, "三"},
		{time.October, 4, "四"},
		{time.December, 4, "四"},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			p := PeriodOf(time.Date(2026, tt.month, 15, 0, 0, 0, 0, time.UTC))
			if p.Year != 2026 || p.Quarter != tt.quarter {
				t.Errorf("PeriodOf = %+v, want 2026 Q%d", p, tt.quarter)
			}
			if got := p.QuarterName(config.QuarterChinese); got != tt.chinese {
				t.Errorf("QuarterName(chinese) = %q, want %q", got, tt.chinese)
			}
		})
	}
}

func TestRender(t *testing.T) {
	cfg := config.Default().Fixer

	f := New(fs.NewNoop(), cfg, Options{Now: func() time.Time { return fixedNow }})
	if text, err := f.Render(); err != nil || text != wantText {
		t.Errorf("Render() = %q, %v; want %q", text, err, wantText)
	}

	cfg.QuarterFormat = config.QuarterArabic
	f = New(fs.NewNoop(), cfg, Options{Now: func() time.Time { return fixedNow }})
	if text, _ := f.Render(); text != "2026年第4季度KPI考核自评__分。" {
		t.Errorf("arabic Render() = %q", text)
	}

	cfg.Template = "{year} {owner} __"
	f = New(fs.NewNoop(), cfg, Options{Now: func() time.Time { return fixedNow }})
	if _, err := f.Render(); err == nil {
		t.Error("expected error for unknown placeholder")
	}
}

func TestPreview_DoesNotTouchFiles(t *testing.T) {
	results := []scan.CheckResult{
		{FilePath: "/kpi/a.docx", FileName: "a.docx", Status: scan.StatusNonCompliant},
		{FilePath: "/kpi/b.docx", FileName: "b.docx", Status: scan.StatusCompliant, HasKPI: true},
		{FilePath: "/kpi/c.docx", FileName: "c.docx", Status: scan.StatusUnreadable},
		{FilePath: "/kpi/d.docx", FileName: "d.docx", Status: scan.StatusNonCompliant},
	}

	// NoopFileSystem panics on any access.
	proposals, err := newFixer(fs.NewNoop()).Preview(results)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	want := []Proposal{
		{FilePath: "/kpi/a.docx", FileName: "a.docx", Text: wantText, Position: PositionEnd},
		{FilePath: "/kpi/d.docx", FileName: "d.docx", Text: wantText, Position: PositionEnd},
	}
	if !reflect.DeepEqual(proposals, want) {
		t.Errorf("Preview() = %+v, want %+v", proposals, want)
	}
}

func TestFix_PreviewRoundTripAndBackup(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	original := []string{"工作总结", "下季度计划"}
	paths := testutil.WriteTree(t, filesystem, root, testutil.Docx("a.docx", original...))

	f := newFixer(filesystem)
	results := []scan.CheckResult{{FilePath: paths[0], FileName: "a.docx", Status: scan.StatusNonCompliant}}

	proposals, err := f.Preview(results)
	if err != nil || len(proposals) != 1 {
		t.Fatalf("Preview: %v %v", proposals, err)
	}

	outcomes := f.Fix(context.Background(), results, true)
	o := outcomes[0]
	if !o.Attempted || !o.Succeeded || o.State != StatePersisted || o.Reason != "" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if o.BackupPath != paths[0]+".bak" {
		t.Errorf("BackupPath = %q", o.BackupPath)
	}

	got := paragraphs(t, filesystem, paths[0])
	if last := got[len(got)-1]; last != proposals[0].Text || o.Text != proposals[0].Text {
		t.Errorf("appended %q, previewed %q", last, proposals[0].Text)
	}
	if !reflect.DeepEqual(got[:len(got)-1], original) {
		t.Errorf("original paragraphs changed: %v", got)
	}
	if backup := paragraphs(t, filesystem, o.BackupPath); !reflect.DeepEqual(backup, original) {
		t.Errorf("backup paragraphs = %v, want %v", backup, original)
	}
}

func TestFix_NoBackup(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	paths := testutil.WriteTree(t, filesystem, root, testutil.Docx("a.docx", "正文"))

	o := newFixer(filesystem).FixFile(paths[0], false)
	if !o.Succeeded || o.BackupPath != "" {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if exists, _ := afero.Exists(filesystem, paths[0]+".bak"); exists {
		t.Error("no backup expected")
	}
}

func TestFix_ExistingBackupIsKept(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	paths := testutil.WriteTree(t, filesystem, root,
		testutil.Docx("a.docx", "正文"),
		testutil.File("a.docx.bak").WithContent("older backup"),
	)

	o := newFixer(filesystem).FixFile(paths[0], true)
	if !o.Succeeded {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if want := testutil.Path(root, "a_2.docx.bak"); o.BackupPath != want {
		t.Errorf("BackupPath = %q, want %q", o.BackupPath, want)
	}
	if data, _ := afero.ReadFile(filesystem, paths[1]); string(data) != "older backup" {
		t.Errorf("existing backup overwritten: %q", data)
	}
}

func TestFix_FailuresAreIsolated(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	paths := testutil.WriteTree(t, filesystem, root,
		testutil.File("broken.docx").WithContent("not a zip"),
		testutil.Docx("good.docx", "正文"),
	)
	missing := testutil.Path(root, "missing.docx")

	outcomes := newFixer(filesystem).FixPaths(context.Background(), []string{paths[0], missing, paths[1]}, true)

	broken := outcomes[0]
	var fixErr *Error
	if broken.Succeeded || broken.State != StateFailed || !errors.As(broken.Err, &fixErr) || fixErr.Stage != "open" {
		t.Errorf("broken outcome = %+v", broken)
	}
	if data, _ := afero.ReadFile(filesystem, paths[0]); string(data) != "not a zip" {
		t.Error("broken file must be left as it was")
	}
	if broken.BackupPath == "" {
		t.Error("backup is taken before the document is opened")
	}

	gone := outcomes[1]
	if gone.Succeeded || !gone.Attempted || gone.State != StateBackupFailed || gone.Reason == "" {
		t.Errorf("missing outcome = %+v", gone)
	}
	if exists, _ := afero.Exists(filesystem, missing); exists {
		t.Error("a failed backup must not create the document")
	}

	if good := outcomes[2]; !good.Succeeded {
		t.Errorf("good outcome = %+v", good)
	}
}

// renameFailingFs refuses renames, so documents can never be persisted.
type renameFailingFs struct {
	fs.FileSystem
}

func (r renameFailingFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
}

func TestFix_PersistFailureKeepsOriginal(t *testing.T) {
	root := testutil.Path("/", "kpi")
	mem := fs.NewMemTest()
	paths := testutil.WriteTree(t, mem, root, testutil.Docx("a.docx", "正文"))
	before, _ := afero.ReadFile(mem, paths[0])

	o := newFixer(renameFailingFs{mem}).FixFile(paths[0], true)
	if o.Succeeded || o.State != StatePersistFailed {
		t.Fatalf("unexpected outcome %+v", o)
	}
	after, _ := afero.ReadFile(mem, paths[0])
	if string(after) != string(before) {
		t.Error("original must be intact after a failed persist")
	}
	if exists, _ := afero.Exists(mem, o.BackupPath); !exists {
		t.Error("backup must survive a failed persist")
	}
}

func TestFix_SkipsDuplicatesAndNonTargets(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	paths := testutil.WriteTree(t, filesystem, root, testutil.Docx("a.docx", "正文"))

	results := []scan.CheckResult{
		{FilePath: paths[0], Status: scan.StatusNonCompliant},
		{FilePath: paths[0], Status: scan.StatusNonCompliant},
		{FilePath: testutil.Path(root, "b.docx"), Status: scan.StatusCompliant},
		{FilePath: testutil.Path(root, "c.docx"), Status: scan.StatusUnreadable},
	}
	outcomes := newFixer(filesystem).Fix(context.Background(), results, false)

	if !outcomes[0].Succeeded {
		t.Errorf("first outcome = %+v", outcomes[0])
	}
	for i, o := range outcomes[1:] {
		if o.Attempted || o.State != StateSkipped || o.Reason == "" {
			t.Errorf("outcome %d = %+v, want skipped", i+1, o)
		}
	}
	if got := paragraphs(t, filesystem, paths[0]); len(got) != 2 {
		t.Errorf("expected exactly one appended paragraph, got %v", got)
	}
}

func TestFix_Cancelled(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	paths := testutil.WriteTree(t, filesystem, root, testutil.Docx("a.docx", "正文"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newFixer(filesystem).FixPaths(ctx, paths, true)[0]
	if o.Attempted || o.State != StateSkipped {
		t.Errorf("unexpected outcome %+v", o)
	}
}

func TestFix_DryRunLeavesBaseUntouched(t *testing.T) {
	root := testutil.Path("/", "kpi")
	base := afero.NewMemMapFs()
	paths := testutil.WriteTree(t, base, root, testutil.Docx("a.docx", "正文"))
	before, _ := afero.ReadFile(base, paths[0])

	dry := fs.NewDryRunOver(base)
	o := newFixer(dry).FixFile(paths[0], true)
	if !o.Succeeded {
		t.Fatalf("unexpected outcome %+v", o)
	}

	if got := paragraphs(t, dry, paths[0]); len(got) != 2 || got[1] != wantText {
		t.Errorf("dry-run view = %v", got)
	}
	after, _ := afero.ReadFile(base, paths[0])
	if string(after) != string(before) {
		t.Error("dry run modified the document")
	}
	if exists, _ := afero.Exists(base, o.BackupPath); exists {
		t.Error("dry run wrote a backup")
	}
}

func TestRestore(t *testing.T) {
	root := testutil.Path("/", "kpi")
	filesystem := fs.NewMemTest()
	paths := testutil.WriteTree(t, filesystem, root, testutil.Docx("a.docx", "正文"))

	f := newFixer(filesystem)
	o := f.FixFile(paths[0], true)
	if !o.Succeeded {
		t.Fatalf("fix: %+v", o)
	}

	if err := f.Restore(paths[0], ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := paragraphs(t, filesystem, paths[0]); !reflect.DeepEqual(got, []string{"正文"}) {
		t.Errorf("restored paragraphs = %v", got)
	}

	err := f.Restore(testutil.Path(root, "other.docx"), "")
	var fixErr *Error
	if !errors.As(err, &fixErr) || fixErr.Stage != "restore" {
		t.Errorf("expected restore error, got %v", err)
	}
}

func TestStateMachine(t *testing.T) {
	m := newMachine()
	m.to(StateBackedUp)
	m.to(StateAppended)
	m.to(StatePersisted)
	if !m.state.Terminal() || !m.state.Succeeded() {
		t.Errorf("persisted must be a successful terminal state")
	}

	for _, s := range []State{StateBackupFailed, StatePersistFailed, StateFailed, StateSkipped} {
		if !s.Terminal() || s.Succeeded() {
			t.Errorf("%s must be a failed terminal state", s)
		}
	}
	for _, s := range []State{StatePending, StateBackedUp, StateAppended} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for pending → persisted")
		}
	}()
	newMachine().to(StatePersisted)
}
