package fs

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// MemFileSystem is an in-memory filesystem for testing.
// Unlike DryRunFileSystem, it has no real base layer.
type MemFileSystem struct {
	afero.Fs
}

// Copy copies src to dst.
func (m *MemFileSystem) Copy(src, dst string) error {
	return copyFile(m.Fs, src, dst)
}

// ResolveConflict handles destination file conflicts.
func (m *MemFileSystem) ResolveConflict(mode ConflictMode, destPath string) (string, bool, error) {
	return resolveConflict(m.Fs, mode, destPath, m.Fs.Remove)
}

func (m *MemFileSystem) Kind() string {
	return "memory"
}

// MustMkdirAll creates a directory and panics on error. For use in tests.
func (m *MemFileSystem) MustMkdirAll(path string) {
	if err := m.Fs.MkdirAll(path, 0755); err != nil {
		panic(fmt.Sprintf("MustMkdirAll(%q): %v", path, err))
	}
}

// MustWriteFile writes data to path and panics on error. For use in tests.
func (m *MemFileSystem) MustWriteFile(path string, data []byte) {
	if err := afero.WriteFile(m.Fs, path, data, os.FileMode(0644)); err != nil {
		panic(fmt.Sprintf("MustWriteFile(%q): %v", path, err))
	}
}
