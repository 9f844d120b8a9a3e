package fs

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
)

// RealFileSystem works on the OS filesystem. Mutations are logged at debug
// level so that a fix run can be traced file by file.
type RealFileSystem struct {
	afero.Fs
}

// Rename replaces newname if it exists; saving a document relies on that.
func (r *RealFileSystem) Rename(oldname, newname string) error {
	slog.Debug("rename", "from", oldname, "to", newname)
	return r.Fs.Rename(oldname, newname)
}

func (r *RealFileSystem) Remove(name string) error {
	slog.Debug("remove", "path", name)
	return r.Fs.Remove(name)
}

// Copy writes a copy of the regular file src to dst.
func (r *RealFileSystem) Copy(src, dst string) error {
	slog.Debug("copy", "from", src, "to", dst)
	return copyFile(r.Fs, src, dst)
}

// ResolveConflict picks the path to write to when destPath may already exist.
func (r *RealFileSystem) ResolveConflict(mode ConflictMode, destPath string) (string, bool, error) {
	return resolveConflict(r.Fs, mode, destPath, r.Remove)
}

func (r *RealFileSystem) Kind() string {
	return "real"
}

// copyFile copies a single regular file, keeping the source mode.
func copyFile(afs afero.Fs, src, dst string) error {
	srcInfo, err := afs.Stat(src)
	if err != nil {
		return err
	}
	if srcInfo.IsDir() {
		return &os.PathError{Op: "copy", Path: src, Err: os.ErrInvalid}
	}

	srcFile, err := afs.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := afs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}
