package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits for writes to settle
const DefaultReloadDebounce = 200 * time.Millisecond

// PatternPackWatcher reloads a pattern pack when its file changes
type PatternPackWatcher struct {
	path     string
	reload   func() ([]string, error)
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// reloaded receives the outcome of every reload attempt, when set
	reloaded chan<- error
}

// NewPatternPackWatcher watches the directory holding path, so editors that
// replace the file on save are still observed
func NewPatternPackWatcher(path string, reload func() ([]string, error), logger *slog.Logger) (*PatternPackWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("pattern pack path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving pattern pack path %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &PatternPackWatcher{
		path:     abs,
		reload:   reload,
		logger:   logger,
		watcher:  watcher,
		debounce: DefaultReloadDebounce,
	}, nil
}

// Run handles file events until ctx is done, then closes the watcher
func (w *PatternPackWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reloadNow()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("pattern pack watcher error", "error", err)
		}
	}
}

func (w *PatternPackWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *PatternPackWatcher) reloadNow() {
	ids, err := w.reload()
	if err != nil {
		w.logger.Warn("pattern pack reload failed, keeping previous patterns", "path", w.path, "error", err)
	} else {
		w.logger.Info("pattern pack reloaded", "path", w.path, "patterns", len(ids))
	}
	if w.reloaded != nil {
		w.reloaded <- err
	}
}
