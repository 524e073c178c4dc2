package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/reverielabs/reverie/internal/logging"
)

// Watcher reloads the configuration when the config file changes on disk
// and hands the validated result to a callback. Invalid edits are logged
// and skipped; the previous configuration stays in effect.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	// Path of the config file being watched
	path string

	// Callback for successfully reloaded configurations
	onReload func(*Config)

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
}

// debounceDelay coalesces the event bursts editors produce on save.
const debounceDelay = 200 * time.Millisecond

// NewWatcher creates a watcher for the config file at path. The callback
// runs on the watcher's goroutine.
func NewWatcher(path string, logger *logging.Logger, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		path:     path,
		onReload: onReload,
		stopCh:   make(chan struct{}),
	}

	// Watch the directory, not the file: editors typically replace the
	// file on save, which would orphan a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err.Error())

		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload arms (or re-arms) the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	if err := viper.ReadInConfig(); err != nil {
		w.logger.Warn("config reload failed to read file", "error", err.Error())
		return
	}

	cfg, err := Load()
	if err != nil {
		w.logger.Warn("config reload rejected", "error", err.Error())
		return
	}

	w.logger.Info("configuration reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops watching. Safe to call once.
func (w *Watcher) Close() error {
	close(w.stopCh)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
