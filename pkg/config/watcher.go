package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces bursts of filesystem events. Editors commonly
// emit several writes per save.
const debounceInterval = 500 * time.Millisecond

// ReloadFunc is invoked with the freshly loaded configuration after the
// watched file changes and parses successfully.
type ReloadFunc func(cfg *Config, table *RouteTable)

// Watcher watches a configuration file and triggers reloads on change.
// A reload that fails to parse or validate is logged and discarded; the
// previously active configuration stays in effect.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	onload  ReloadFunc
	logger  *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher creates a watcher for the given configuration file. The parent
// directory is watched rather than the file itself so that atomic
// rename-based saves are observed.
func NewWatcher(path string, onload ReloadFunc, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		path:    path,
		watcher: fw,
		onload:  onload,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces the reload so a burst of events produces a
// single reload once the file settles.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceInterval, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous configuration",
			"path", w.path,
			"error", err)
		return
	}

	table, err := NewRouteTable(cfg)
	if err != nil {
		w.logger.Error("config reload produced no usable routes, keeping previous configuration",
			"path", w.path,
			"error", err)
		return
	}

	w.logger.Info("configuration reloaded",
		"path", w.path,
		"routes", table.Len())

	w.onload(cfg, table)
}
