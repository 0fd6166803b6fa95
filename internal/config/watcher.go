package config

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zcode-dev/agentcore/internal/zlog"
)

// Watcher hot-reloads the sub-agent profile directories named by
// GetAgentPaths: creating, editing, or removing a file under any of them
// fires onChange after a short debounce, rather than requiring a restart
// to pick up the new profile.
//
// Events are debounced behind a single time.AfterFunc so an editor's
// write-rename-chmod burst triggers one reload, not three.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher builds a Watcher that calls onChange (with the path that
// changed) after events settle for debounce. debounce<=0 defaults to
// 250ms.
func NewWatcher(onChange func(path string), debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{watcher: fw, debounce: debounce, onChange: onChange}, nil
}

// WatchConfiguredDirs adds every existing directory from GetAgentPaths,
// ignoring ones that don't exist yet; a directory created after this call
// is not watched.
func (w *Watcher) WatchConfiguredDirs() {
	log := zlog.With("config")
	for _, p := range GetAgentPaths() {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := w.watcher.Add(p); err != nil {
			log.Warn("watch directory failed", "path", p, "error", err)
		}
	}
}

// Start begins the debounced event loop in a background goroutine. Stop
// must be called to release the underlying OS watch handles.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop cancels the event loop and closes the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	_ = w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	log := zlog.With("config")

	var timerMu sync.Mutex
	var timer *time.Timer
	var pending string
	schedule := func(path string) {
		timerMu.Lock()
		defer timerMu.Unlock()
		pending = path
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			timerMu.Lock()
			p := pending
			timerMu.Unlock()
			if w.onChange != nil {
				w.onChange(p)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("config watch error", "error", err)
		}
	}
}
