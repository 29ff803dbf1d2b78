// Package watch is an optional enrichment on top of the core attachment
// check: it watches a workspace directory live and pushes Detached
// notifications as soon as a tracked file changes underneath jin, rather
// than requiring a caller to poll ValidateAttached. Adapted from the
// teacher's turso/daemon FileWatcher, generalized from task/dep JSON
// files to the arbitrary set of paths Workspace Metadata tracks.
package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dabstractor/jin/internal/workspace"
)

// Event reports that a tracked path changed underneath the workspace.
type Event struct {
	Path string
}

// Watcher watches every directory that contains a tracked path and emits
// an Event whenever one of those tracked files is written, renamed, or
// removed.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	tracked map[string]bool
}

// New creates a Watcher. It must be started with Start before it emits
// anything.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher: fw,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching every directory that contains a path tracked by
// meta, rooted at root.
func (w *Watcher) Start(root string, meta *workspace.Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	w.tracked = map[string]bool{}
	dirs := map[string]bool{}
	for path := range meta.Hashes {
		w.tracked[path] = true
		dirs[dirOf(root, path)] = true
	}

	var added []string
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			for _, d := range added {
				w.watcher.Remove(d)
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		added = append(added, dir)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop(root)
	return nil
}

// Stop stops watching and blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of Detached notifications.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watcher-internal errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) loop(root string) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if rel, isTracked := w.relTracked(root, ev.Name); isTracked {
				select {
				case w.events <- Event{Path: rel}:
				case <-w.done:
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

func (w *Watcher) relTracked(root, absPath string) (string, bool) {
	rel := stripRoot(root, absPath)
	return rel, w.tracked[rel]
}

func dirOf(root, relPath string) string {
	return filepath.Dir(filepath.Join(root, relPath))
}

func stripRoot(root, absPath string) string {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return absPath
	}
	return filepath.ToSlash(strings.TrimPrefix(rel, "./"))
}
