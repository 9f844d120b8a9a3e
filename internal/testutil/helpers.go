package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// FileEntry describes a file to create in a test tree.
type FileEntry struct {
	Path       string   // relative path using forward slashes (e.g., "team/a.docx")
	IsDir      bool     // true for directories
	Content    string   // raw file content, used when Paragraphs is nil
	Paragraphs []string // when set, the file is written as a .docx with these paragraphs
}

// File creates a FileEntry for a raw file at the given path.
// Path should use forward slashes regardless of OS.
func File(path string) FileEntry {
	return FileEntry{Path: path}
}

// Dir creates a FileEntry for a directory at the given path.
func Dir(path string) FileEntry {
	return FileEntry{Path: path, IsDir: true}
}

// Docx creates a FileEntry for a .docx document with the given paragraphs.
func Docx(path string, paragraphs ...string) FileEntry {
	if paragraphs == nil {
		paragraphs = []string{}
	}
	return FileEntry{Path: path, Paragraphs: paragraphs}
}

// WithContent sets the raw file content.
func (f FileEntry) WithContent(content string) FileEntry {
	f.Content = content
	f.Paragraphs = nil
	return f
}

// WriteTree creates entries below root and returns the absolute path of each
// non-directory entry, in order.
func WriteTree(t *testing.T, afs afero.Fs, root string, entries ...FileEntry) []string {
	t.Helper()

	var paths []string
	for _, e := range entries {
		path := Under(root, e.Path)[0]

		if e.IsDir {
			if err := afs.MkdirAll(path, 0755); err != nil {
				t.Fatalf("failed to create directory %s: %v", e.Path, err)
			}
			continue
		}

		if err := afs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create parent directory for %s: %v", e.Path, err)
		}

		content := []byte(e.Content)
		if e.Paragraphs != nil {
			content = BuildDocx(e.Paragraphs...)
		}
		if err := afero.WriteFile(afs, path, content, 0644); err != nil {
			t.Fatalf("failed to create file %s: %v", e.Path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
