// Package watch regenerates scaffold tests as source files appear or change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"testgen/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Handler receives a batch of settled source paths, sorted.
type Handler func(ctx context.Context, paths []string)

// Filter reports whether a path relative to the root is an eligible source.
type Filter func(rel string) bool

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	DirsAdded     int
	Batches       int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// ErrClosed is returned by Start after Stop.
var ErrClosed = errors.New("watcher closed")

// Watcher watches a source root recursively and forwards debounced batches
// of eligible files to a handler.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	root        string
	filter      Filter
	handler     Handler
	ignore      Filter
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closed      bool

	stats Stats
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a path must be quiet before it is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDur = d
		}
	}
}

// WithIgnore skips directories for which ignore(rel) is true.
func WithIgnore(ignore Filter) Option {
	return func(w *Watcher) { w.ignore = ignore }
}

// New creates a watcher over root. filter selects eligible files; handler
// receives each settled batch.
func New(root string, filter Filter, handler Handler, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		root:        root,
		filter:      filter,
		handler:     handler,
		debounceMap: make(map[string]time.Time),
		debounceDur: 300 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Start adds the root and its sub-directories and begins watching.
// This method is non-blocking; events are handled in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root, false); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Watch("watching %s (debounce %v)", w.root, w.debounceDur)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. A stopped
// watcher cannot be started again.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("watcher stopped")
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 2
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files may land in a new directory before it is watched.
			if err := w.addTree(event.Name, true); err != nil {
				logging.Get(logging.CategoryWatch).Warn("failed to watch %s: %v", event.Name, err)
			}
			return
		}
	}

	if !w.eligible(event.Name) {
		return
	}

	logging.WatchDebug("%s event for %s", event.Op, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	if event.Op&fsnotify.Create != 0 {
		w.stats.FilesCreated++
	} else {
		w.stats.FilesModified++
	}
	w.debounceMap[event.Name] = time.Now()
}

// addTree watches dir and every sub-directory. With enqueue set, eligible
// files already present are scheduled.
func (w *Watcher) addTree(dir string, enqueue bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if enqueue && w.eligible(path) {
				w.mu.Lock()
				w.debounceMap[path] = time.Now()
				w.mu.Unlock()
			}
			return nil
		}
		if path != w.root && w.ignore != nil {
			if rel, err := filepath.Rel(w.root, path); err == nil && w.ignore(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.mu.Lock()
		w.stats.DirsAdded++
		w.mu.Unlock()
		logging.WatchDebug("watching directory: %s", path)
		return nil
	})
}

func (w *Watcher) eligible(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return w.filter == nil || w.filter(rel)
}

// processDebounced hands settled paths to the handler as one batch.
func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var batch []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			batch = append(batch, path)
			delete(w.debounceMap, path)
		}
	}
	if len(batch) > 0 {
		w.stats.Batches++
	}
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	sort.Strings(batch)
	logging.Watch("processing %d settled file(s)", len(batch))
	w.handler(ctx, batch)
}
