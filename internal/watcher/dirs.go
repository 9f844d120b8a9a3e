package watcher

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/prettymuchbryce/kpicheck/internal/fs"
)

// fsnotifyWatcher is the interface for fsnotify operations, allowing mocking in tests.
type fsnotifyWatcher interface {
	Add(name string) error
	Remove(name string) error
}

// watchedDirs tracks the directories registered with fsnotify below one root.
// fsnotify is not recursive, so every subdirectory of a recursive root needs
// its own watch.
type watchedDirs struct {
	fs        fs.FileSystem
	fsWatcher fsnotifyWatcher
	root      string
	recursive bool
	dirs      map[string]bool
}

func newWatchedDirs(filesystem fs.FileSystem, fsWatcher fsnotifyWatcher, root string, recursive bool) *watchedDirs {
	return &watchedDirs{
		fs:        filesystem,
		fsWatcher: fsWatcher,
		root:      filepath.Clean(root),
		recursive: recursive,
		dirs:      make(map[string]bool),
	}
}

// addRoot watches the root and, for a recursive root, all its subdirectories.
func (w *watchedDirs) addRoot() error {
	if err := w.fsWatcher.Add(w.root); err != nil {
		return err
	}
	w.dirs[w.root] = true
	if w.recursive {
		w.addSubdirectories(w.root)
	}
	return nil
}

// addSubdirectories adds watches to all subdirectories under path.
func (w *watchedDirs) addSubdirectories(path string) {
	entries, err := afero.ReadDir(w.fs, path)
	if err != nil {
		slog.Warn("failed to read directory when adding watches", "path", path, "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		w.add(filepath.Join(path, e.Name()))
	}
}

func (w *watchedDirs) add(path string) {
	if w.dirs[path] {
		return
	}
	if err := w.fsWatcher.Add(path); err != nil {
		slog.Warn("fswatcher failed to add watch", "path", path, "error", err)
		return
	}
	slog.Debug("watching directory", "path", path)
	w.dirs[path] = true
	w.addSubdirectories(path)
}

// created handles a create event. New directories below a recursive root are
// watched together with their contents.
func (w *watchedDirs) created(path string) {
	if !w.recursive || w.dirs[path] {
		return
	}
	info, err := w.fs.Stat(path)
	if err != nil || !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
		return
	}
	if !w.within(path) {
		return
	}
	w.add(path)
}

// removed drops path and everything below it. fsnotify removes watches of
// deleted directories itself, but not on every platform for renames.
func (w *watchedDirs) removed(path string) {
	if !w.dirs[path] {
		return
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir != path && !strings.HasPrefix(dir, prefix) {
			continue
		}
		if err := w.fsWatcher.Remove(dir); err != nil {
			slog.Debug("fswatcher failed to remove watch", "path", dir, "error", err)
		}
		delete(w.dirs, dir)
	}
}

func (w *watchedDirs) within(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// list returns the watched directories in sorted order.
func (w *watchedDirs) list() []string {
	out := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}
