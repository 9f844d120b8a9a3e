// Package watcher re-runs a check whenever documents below a directory change.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/prettymuchbryce/kpicheck/internal/fs"
)

// Handler is called after a burst of relevant changes has settled.
type Handler func(ctx context.Context) error

// Options tune a Watcher.
type Options struct {
	Recursive bool
	// Debounce is how long the directory must stay quiet before Handler runs.
	Debounce time.Duration
	// Cooldown is how long after Handler returns events are ignored, so
	// that the handler's own writes do not trigger another run.
	Cooldown time.Duration
}

// Watcher monitors a directory and calls a Handler on document changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dirs      *watchedDirs
	handler   Handler
	opts      Options

	timer         *time.Timer
	fire          chan struct{}
	eventChan     chan TimestampedEvent
	lastCompleted time.Time

	// Closed when the watcher is stopping to unblock goroutines
	done chan struct{}
}

// TimestampedEvent wraps an fsnotify event with its receive time.
type TimestampedEvent struct {
	Event fsnotify.Event
	Time  time.Time
}

// New creates a Watcher for root. Nothing is watched until Run.
func New(filesystem fs.FileSystem, root string, opts Options, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}

	w := &Watcher{
		fsWatcher: fsw,
		dirs:      newWatchedDirs(filesystem, fsw, root, opts.Recursive),
		handler:   handler,
		opts:      opts,
		fire:      make(chan struct{}),
		eventChan: make(chan TimestampedEvent, 100),
		done:      make(chan struct{}),
	}
	w.timer = time.AfterFunc(time.Hour, func() {
		select {
		case w.fire <- struct{}{}:
		case <-w.done:
		}
	})
	w.timer.Stop()
	return w, nil
}

// Relevant reports whether an event concerns a document the check would read.
func Relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".docx")
}

// eventLoop reads from fsnotify and timestamps events before forwarding.
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			select {
			case w.eventChan <- TimestampedEvent{Event: event, Time: time.Now()}:
			case <-w.done:
				return
			}
		}
	}
}

// Run watches until ctx is cancelled. Handler errors are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.dirs.addRoot(); err != nil {
		w.fsWatcher.Close()
		return err
	}
	slog.Info("watcher started", "root", w.dirs.root, "dirs", w.WatchCount(), "debounce", w.opts.Debounce)

	go w.eventLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopping")
			close(w.done)
			w.timer.Stop()
			return w.fsWatcher.Close()

		case te := <-w.eventChan:
			w.process(te)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)

		case <-w.fire:
			w.execute(ctx)
		}
	}
}

func (w *Watcher) process(te TimestampedEvent) {
	ev := te.Event
	switch {
	case ev.Has(fsnotify.Create):
		w.dirs.created(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.dirs.removed(ev.Name)
	}

	if !Relevant(ev) {
		return
	}
	if te.Time.Before(w.lastCompleted.Add(w.opts.Cooldown)) {
		slog.Debug("ignoring event during cooldown", "path", ev.Name)
		return
	}
	slog.Debug("scheduling check", "path", ev.Name, "op", ev.Op.String())
	w.timer.Reset(w.opts.Debounce)
}

func (w *Watcher) execute(ctx context.Context) {
	if err := w.handler(ctx); err != nil {
		slog.Error("check failed", "error", err)
	}
	w.lastCompleted = time.Now()
}

// WatchCount returns the number of directories currently being watched.
func (w *Watcher) WatchCount() int {
	return len(w.dirs.dirs)
}
