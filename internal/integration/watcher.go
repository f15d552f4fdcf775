package integration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of inbox file events into one nudge.
const DefaultDebounce = 250 * time.Millisecond

// InboxWatcher watches inbox directories and invokes a callback, debounced,
// whenever a markdown file is created, written, removed or renamed.
type InboxWatcher struct {
	fsw      *fsnotify.Watcher
	delay    time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
}

// NewInboxWatcher creates an InboxWatcher over dirs.
func NewInboxWatcher(dirs []string, delay time.Duration, callback func()) (*InboxWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &InboxWatcher{fsw: fsw, delay: delay, callback: callback}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed. Watcher errors
// go to errFn when it is non-nil.
func (w *InboxWatcher) Run(ctx context.Context, errFn func(error)) {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				w.stopTimer()
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			w.debounce()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.stopTimer()
				return
			}
			if errFn != nil {
				errFn(err)
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *InboxWatcher) Close() error {
	return w.fsw.Close()
}

func (w *InboxWatcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.callback)
}

func (w *InboxWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
