// Package watch reruns tests when scripts change on disk.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Stats tracks watcher activity, mainly for tests.
type Stats struct {
	Events    int
	Debounced int
	Reruns    int
}

// Watcher monitors a directory for Go script writes and invokes the rerun
// callback after a debounce window, so a burst of editor saves triggers one
// rerun instead of five.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	rerun    func()
	trace    *zap.SugaredLogger

	lastSeen map[string]time.Time
	stats    Stats
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

func New(root string, debounce time.Duration, rerun func(), trace *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		watcher:  fsw,
		root:     root,
		debounce: debounce,
		rerun:    rerun,
		trace:    trace,
		lastSeen: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; events are handled on a
// background goroutine until Stop is called or ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(w.root); err != nil {
		return err
	}
	w.running = true
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
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
			if w.trace != nil {
				w.trace.Warnw("watch error", "error", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".go") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.Lock()
	w.stats.Events++
	now := time.Now()
	key := filepath.Clean(event.Name)
	if last, ok := w.lastSeen[key]; ok && now.Sub(last) < w.debounce {
		w.stats.Debounced++
		w.mu.Unlock()
		return
	}
	w.lastSeen[key] = now
	w.stats.Reruns++
	rerun := w.rerun
	w.mu.Unlock()

	if w.trace != nil {
		w.trace.Infow("script changed, rerunning", "script", key)
	}
	if rerun != nil {
		rerun()
	}
}

// Stats returns a copy of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.watcher.Close()
	<-w.doneCh
}
