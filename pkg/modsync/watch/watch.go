// Package watch reports changes under a mods directory, coalescing bursts
// of filesystem events into a single notification.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// ignoredSuffixes are transient files written by modsync itself.
var ignoredSuffixes = []string{".tmp", ".lock", ".reassembling"}

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the directory must be quiet before a batch of
	// changes is delivered.
	Debounce time.Duration
}

// Watcher watches directory trees for changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	paths    map[string]bool
	mu       sync.Mutex
	closed   bool
	log      *logging.Logger
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fsw,
		debounce: opts.Debounce,
		paths:    make(map[string]bool),
		log:      logging.Get("watch"),
	}, nil
}

// Watch starts watching root and all its subdirectories.
// Symlinks are not followed to avoid loops.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "watch", Path: absRoot, Err: os.ErrInvalid}
	}

	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // Skip entries with errors
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return w.addWatch(path)
		}
		return nil
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// Run delivers batches of changed paths to onChange until ctx is done.
// A batch is delivered once no event has arrived for the debounce period.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handleEvent(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			w.log.Debug("changes detected", "count", len(batch))
			onChange(batch)
		}
	}
}

// handleEvent updates watches and reports whether the event is relevant.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if isIgnored(event.Name) {
		return false
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() && info.Mode()&fs.ModeSymlink == 0 {
			_ = w.Watch(event.Name)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.forget(event.Name)
	case event.Op&fsnotify.Chmod != 0:
		return false
	}
	return true
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

func isIgnored(path string) bool {
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
