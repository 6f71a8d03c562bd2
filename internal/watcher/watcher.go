// Package watcher provides a debounced filesystem watcher. Bursts of
// events (git rewriting refs, editors saving through temp files) are
// coalesced into a single notification carrying the affected paths.
package watcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes one directory and delivers debounced notifications.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	notify   func(paths []string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	done    chan struct{}
	closed  bool
}

// New creates a Watcher on path and starts delivering notifications.
// notify is called from a background goroutine after debounce has
// elapsed with no further events.
func New(path string, debounce time.Duration, notify func(paths []string)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fs.Add(path); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		fs:       fs,
		debounce: debounce,
		notify:   notify,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	w.mu.Unlock()

	return w.fs.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.record(event.Name)
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			// Errors are transient (overflow, unreadable entries);
			// keep watching.
		case <-w.done:
			return
		}
	}
}

// record adds a path to the pending set and restarts the debounce timer.
func (w *Watcher) record(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	w.notify(paths)
}
