// Package watcher observes filesystem subtrees and emits debounced,
// per-path change events. It is the producer side of the re-parse
// pipeline; consumers pull events one at a time with NextChange.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned by NextChange after Close.
var ErrClosed = errors.New("watcher closed")

// ChangeKind is the coalesced outcome of one debounce window for a path.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"

	// ChangeRenamedFrom is intermediate: the OS reported the old path of a
	// rename. The debouncer either correlates it with a Create into a
	// Renamed event or degrades it to Deleted.
	ChangeRenamedFrom ChangeKind = "renamed_from"
)

// ChangeEvent is one debounced change. For renames, Path is the new
// location and OldPath the previous one.
type ChangeEvent struct {
	Root      string
	Path      string
	OldPath   string
	Kind      ChangeKind
	Timestamp time.Time
}

// Watcher wraps fsnotify with recursive directory registration and
// debouncing. Events are best-effort: bursts coalesce, and callers must
// tolerate spurious or merged events.
type Watcher struct {
	fs  *fsnotify.Watcher
	deb *debouncer
	log *slog.Logger

	mu    sync.Mutex
	roots map[string]string // watched directory -> repo root

	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger; the default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// WithDebounce sets the coalescing window; the default is 50ms.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.deb.setWindow(d) }
}

// New creates a watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fs:    fsw,
		deb:   newDebouncer(50 * time.Millisecond),
		log:   slog.Default(),
		roots: make(map[string]string),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.loop()
	return w, nil
}

// SetDebounceDuration changes the coalescing window for subsequent
// events.
func (w *Watcher) SetDebounceDuration(d time.Duration) {
	w.deb.setWindow(d)
}

// WatchDir registers a directory and all of its subdirectories. root is
// the repository root the emitted events are attributed to.
func (w *Watcher) WatchDir(dir, root string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.mu.Lock()
		w.roots[path] = root
		w.mu.Unlock()
		return nil
	})
}

// UnwatchDir removes a directory and any registered subdirectories.
func (w *Watcher) UnwatchDir(dir string) error {
	w.mu.Lock()
	var toRemove []string
	for watched := range w.roots {
		if watched == dir || isUnder(watched, dir) {
			toRemove = append(toRemove, watched)
		}
	}
	for _, watched := range toRemove {
		delete(w.roots, watched)
	}
	w.mu.Unlock()

	var firstErr error
	for _, watched := range toRemove {
		if err := w.fs.Remove(watched); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unwatch %s: %w", watched, err)
		}
	}
	return firstErr
}

// NextChange blocks until a debounced event is ready, the context is
// canceled, or the watcher is closed.
func (w *Watcher) NextChange(ctx context.Context) (ChangeEvent, error) {
	select {
	case ev := <-w.deb.out:
		return ev, nil
	case <-ctx.Done():
		return ChangeEvent{}, ctx.Err()
	case <-w.done:
		// Drain anything already debounced before reporting closure.
		select {
		case ev := <-w.deb.out:
			return ev, nil
		default:
			return ChangeEvent{}, ErrClosed
		}
	}
}

// Close stops the event loop and releases the OS watch handles.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

// loop converts raw fsnotify events into debouncer input and registers
// newly created subdirectories.
func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	kind, ok := mapOp(ev.Op)
	if !ok {
		return
	}

	if kind == ChangeCreated {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// New subtree under a watched root: watch it too.
			root := w.rootFor(ev.Name)
			if err := w.WatchDir(ev.Name, root); err != nil {
				w.log.Warn("watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	w.deb.observe(ChangeEvent{
		Root:      w.rootFor(ev.Name),
		Path:      ev.Name,
		Kind:      kind,
		Timestamp: time.Now(),
	})
}

// rootFor finds the repo root for a path by its nearest watched ancestor.
func (w *Watcher) rootFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	best := ""
	bestLen := -1
	for watched, root := range w.roots {
		if (path == watched || isUnder(path, watched)) && len(watched) > bestLen {
			best = root
			bestLen = len(watched)
		}
	}
	return best
}

// mapOp translates an fsnotify op to a change kind. Chmod-only events
// carry no content change and are dropped.
func mapOp(op fsnotify.Op) (ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ChangeCreated, true
	case op.Has(fsnotify.Write):
		return ChangeModified, true
	case op.Has(fsnotify.Remove):
		return ChangeDeleted, true
	case op.Has(fsnotify.Rename):
		return ChangeRenamedFrom, true
	default:
		return "", false
	}
}

// isUnder reports whether path is strictly inside dir.
func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return filepath.IsLocal(rel)
}
