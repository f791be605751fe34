package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/comfortablynumb/mockdispatch/internal/observability"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads Options whenever the configured file changes on disk.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	reloadFn func(Options)
	done     chan struct{}
}

// NewWatcher creates a Watcher that calls reloadFn with freshly loaded
// Options each time loader's file changes.
func NewWatcher(loader *Loader, reloadFn func(Options)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(loader.path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{loader: loader, watcher: fsw, reloadFn: reloadFn, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	target := filepath.Clean(w.loader.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			observability.Error("config watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	opts, err := w.loader.Load()
	if err != nil {
		observability.Error("failed to reload configuration", zap.Error(err))
		return
	}
	observability.Info("configuration reloaded", zap.String("path", w.loader.path))
	w.reloadFn(opts)
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
