// Package watch turns filesystem changes under a project root into batched
// rescan requests.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/coderef/coderef/pkg/scan"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 300 * time.Millisecond

// Config holds watcher configuration.
type Config struct {
	Root     string
	Filter   *scan.Filter
	Debounce time.Duration // default DefaultDebounce
	// OnChange receives the absolute paths changed since the last call,
	// sorted and deduplicated. It is never called concurrently.
	OnChange func(ctx context.Context, paths []string)
}

// Watcher watches every non-excluded directory under a root. New directories
// are picked up as they appear.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	filter   *scan.Filter
	debounce time.Duration
	onChange func(ctx context.Context, paths []string)

	mu      sync.Mutex
	watched map[string]bool
	pending map[string]bool
	timer   *time.Timer
	fire    chan struct{}
}

// New creates a watcher and registers the directories under cfg.Root.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Filter == nil {
		f, _ := scan.New(scan.DefaultOptions()).Filter(cfg.Root)
		cfg.Filter = f
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		root:     root,
		filter:   cfg.Filter,
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		watched:  make(map[string]bool),
		pending:  make(map[string]bool),
		fire:     make(chan struct{}, 1),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree registers dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			slog.Debug("watch: skipping unreadable directory", "path", path, "error", err)
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && rel != "." && w.filter.SkipDir(rel) {
			return fs.SkipDir
		}
		return w.add(path)
	})
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// Watched returns the watched directories, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.watched))
	for d := range w.watched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: fsnotify error", "error", err)

		case <-w.fire:
			if paths := w.drain(); len(paths) > 0 && w.onChange != nil {
				w.onChange(ctx, paths)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	rel, ok := w.rel(event.Name)
	if !ok || rel == "." {
		return
	}

	if event.Op&fsnotify.Create != 0 && isDir(event.Name) {
		if w.filter.SkipDir(rel) {
			return
		}
		if err := w.addTree(event.Name); err != nil {
			slog.Warn("watch: cannot watch new directory", "path", event.Name, "error", err)
		}
		// Files written before the directory was registered are missed by
		// fsnotify; mark the directory so the rescan covers them.
		w.mark(event.Name)
		return
	}

	if !w.filter.Selects(rel) {
		return
	}
	w.mark(event.Name)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// mark records a changed path and restarts the debounce timer.
func (w *Watcher) mark(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	sort.Strings(paths)
	return paths
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
