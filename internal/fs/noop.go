package fs

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
)

// NoopFileSystem is a FileSystem for code paths that must not do any I/O,
// such as a fix preview. Every operation panics, naming the call and path.
type NoopFileSystem struct{}

// NewNoop creates a FileSystem that panics on any operation.
func NewNoop() FileSystem {
	return &NoopFileSystem{}
}

func refuse(op, path string) error {
	panic(fmt.Sprintf("fs: %s(%q) on a no-op filesystem", op, path))
}

func (*NoopFileSystem) Create(name string) (afero.File, error) { return nil, refuse("Create", name) }
func (*NoopFileSystem) Mkdir(name string, _ os.FileMode) error { return refuse("Mkdir", name) }
func (*NoopFileSystem) MkdirAll(p string, _ os.FileMode) error { return refuse("MkdirAll", p) }
func (*NoopFileSystem) Open(name string) (afero.File, error)   { return nil, refuse("Open", name) }
func (*NoopFileSystem) Remove(name string) error               { return refuse("Remove", name) }
func (*NoopFileSystem) RemoveAll(p string) error               { return refuse("RemoveAll", p) }
func (*NoopFileSystem) Rename(from, _ string) error            { return refuse("Rename", from) }
func (*NoopFileSystem) Stat(name string) (os.FileInfo, error)  { return nil, refuse("Stat", name) }
func (*NoopFileSystem) Chmod(name string, _ os.FileMode) error { return refuse("Chmod", name) }
func (*NoopFileSystem) Chown(name string, _, _ int) error      { return refuse("Chown", name) }
func (*NoopFileSystem) Copy(src, _ string) error               { return refuse("Copy", src) }

func (*NoopFileSystem) OpenFile(name string, _ int, _ os.FileMode) (afero.File, error) {
	return nil, refuse("OpenFile", name)
}

func (*NoopFileSystem) Chtimes(name string, _, _ time.Time) error {
	return refuse("Chtimes", name)
}

func (*NoopFileSystem) ResolveConflict(_ ConflictMode, dest string) (string, bool, error) {
	return "", false, refuse("ResolveConflict", dest)
}

func (*NoopFileSystem) Name() string { return "NoopFileSystem" }
func (*NoopFileSystem) Kind() string { return "noop" }
