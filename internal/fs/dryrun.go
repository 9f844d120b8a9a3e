package fs

import (
	"log/slog"

	"github.com/spf13/afero"
)

// DryRunFileSystem simulates operations without modifying the real filesystem.
// Uses CopyOnWriteFs so a fix can run end to end in memory.
type DryRunFileSystem struct {
	afero.Fs
}

// Remove is a no-op in dry-run mode.
// CoW doesn't support removing files that only exist in the base layer.
func (d *DryRunFileSystem) Remove(name string) error {
	slog.Debug("dry-run: remove", "path", name)
	return nil
}

// RemoveAll is a no-op in dry-run mode.
func (d *DryRunFileSystem) RemoveAll(path string) error {
	slog.Debug("dry-run: remove all", "path", path)
	return nil
}

// Rename copies to the new location so later reads see the new content.
// CoW can't rename files that only exist in the base layer.
func (d *DryRunFileSystem) Rename(oldname, newname string) error {
	slog.Debug("dry-run: rename", "from", oldname, "to", newname)
	return copyFile(d.Fs, oldname, newname)
}

// Copy performs the copy in the memory layer.
func (d *DryRunFileSystem) Copy(src, dst string) error {
	slog.Debug("dry-run: copy", "from", src, "to", dst)
	return copyFile(d.Fs, src, dst)
}

// ResolveConflict handles destination conflicts without removing anything.
func (d *DryRunFileSystem) ResolveConflict(mode ConflictMode, destPath string) (string, bool, error) {
	return resolveConflict(d.Fs, mode, destPath, d.Remove)
}

func (d *DryRunFileSystem) Kind() string {
	return "dry-run"
}
