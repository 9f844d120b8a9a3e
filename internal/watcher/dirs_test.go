package watcher

import (
	"errors"
	"reflect"
	"testing"

	"github.com/prettymuchbryce/kpicheck/internal/fs"
	"github.com/prettymuchbryce/kpicheck/internal/testutil"
)

// mockFsWatcher tracks Add/Remove calls for testing.
type mockFsWatcher struct {
	added   []string
	removed []string
	failAdd map[string]bool
}

func (m *mockFsWatcher) Add(name string) error {
	if m.failAdd[name] {
		return errors.New("add failed")
	}
	m.added = append(m.added, name)
	return nil
}

func (m *mockFsWatcher) Remove(name string) error {
	m.removed = append(m.removed, name)
	return nil
}

func setupTree(t *testing.T) fs.FileSystem {
	t.Helper()
	filesystem := fs.NewMem()
	testutil.WriteTree(t, filesystem, testutil.Path("/", "docs"),
		testutil.File("a.docx"),
		testutil.Dir("team"),
		testutil.Dir("team/sub"),
		testutil.Dir(".git"),
		testutil.Dir("archive"),
	)
	return filesystem
}

func TestWatchedDirs_AddRoot(t *testing.T) {
	root := testutil.Path("/", "docs")
	tests := []struct {
		name      string
		recursive bool
		failAdd   []string
		expected  []string
	}{
		{
			name:     "flat",
			expected: []string{root},
		},
		{
			name:      "recursive skips hidden directories",
			recursive: true,
			expected: []string{
				root,
				testutil.Path("/", "docs", "archive"),
				testutil.Path("/", "docs", "team"),
				testutil.Path("/", "docs", "team", "sub"),
			},
		},
		{
			name:      "failed subdirectory is left out with its children",
			recursive: true,
			failAdd:   []string{testutil.Path("/", "docs", "team")},
			expected:  []string{root, testutil.Path("/", "docs", "archive")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockFsWatcher{failAdd: map[string]bool{}}
			for _, p := range tt.failAdd {
				mock.failAdd[p] = true
			}
			w := newWatchedDirs(setupTree(t), mock, root, tt.recursive)
			if err := w.addRoot(); err != nil {
				t.Fatalf("addRoot: %v", err)
			}
			if got := w.list(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("watched = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWatchedDirs_RootFailure(t *testing.T) {
	root := testutil.Path("/", "docs")
	mock := &mockFsWatcher{failAdd: map[string]bool{root: true}}
	w := newWatchedDirs(setupTree(t), mock, root, true)
	if err := w.addRoot(); err == nil {
		t.Fatal("expected error when the root cannot be watched")
	}
	if len(w.list()) != 0 {
		t.Errorf("expected nothing watched, got %v", w.list())
	}
}

func TestWatchedDirs_Created(t *testing.T) {
	root := testutil.Path("/", "docs")
	filesystem := setupTree(t)
	newDir := testutil.Path("/", "docs", "new")
	testutil.WriteTree(t, filesystem, newDir, testutil.Dir("inner"), testutil.File("x.docx"))

	t.Run("recursive watches new directory and its children", func(t *testing.T) {
		mock := &mockFsWatcher{}
		w := newWatchedDirs(filesystem, mock, root, true)
		w.dirs[root] = true

		w.created(newDir)
		w.created(testutil.Path("/", "docs", "new", "x.docx"))

		expected := []string{root, newDir, testutil.Path("/", "docs", "new", "inner")}
		if got := w.list(); !reflect.DeepEqual(got, expected) {
			t.Errorf("watched = %v, want %v", got, expected)
		}
	})

	t.Run("flat ignores new directories", func(t *testing.T) {
		mock := &mockFsWatcher{}
		w := newWatchedDirs(filesystem, mock, root, false)
		w.dirs[root] = true

		w.created(newDir)
		if len(mock.added) != 0 {
			t.Errorf("expected no watches added, got %v", mock.added)
		}
	})

	t.Run("outside root is ignored", func(t *testing.T) {
		mock := &mockFsWatcher{}
		w := newWatchedDirs(filesystem, mock, newDir, true)
		w.created(root)
		if len(mock.added) != 0 {
			t.Errorf("expected no watches added, got %v", mock.added)
		}
	})
}

func TestWatchedDirs_Removed(t *testing.T) {
	root := testutil.Path("/", "docs")
	mock := &mockFsWatcher{}
	w := newWatchedDirs(setupTree(t), mock, root, true)
	if err := w.addRoot(); err != nil {
		t.Fatalf("addRoot: %v", err)
	}

	w.removed(testutil.Path("/", "docs", "team"))
	w.removed(testutil.Path("/", "docs", "missing"))

	expected := []string{root, testutil.Path("/", "docs", "archive")}
	if got := w.list(); !reflect.DeepEqual(got, expected) {
		t.Errorf("watched = %v, want %v", got, expected)
	}
	if len(mock.removed) != 2 {
		t.Errorf("expected 2 removals (team and team/sub), got %v", mock.removed)
	}
}
