// Package watch triggers context refreshes when watched files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Refresher is what a change triggers; *app.Context satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Watcher monitors directories and signals debounced changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dirs      []string
	patterns  []string
	debounce  time.Duration
	logger    *slog.Logger
	onChange  chan struct{}
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Dirs        []string
	Patterns    []string // base-name globs; empty accepts every file
	DebounceDur time.Duration
	Logger      *slog.Logger
}

// DefaultConfig watches dirs for YAML bundle changes.
func DefaultConfig(dirs ...string) Config {
	return Config{
		Dirs:        dirs,
		Patterns:    []string{"*.yaml", "*.yml"},
		DebounceDur: 250 * time.Millisecond,
	}
}

// New creates a watcher. Call Start to begin watching.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsWatcher: fsw,
		dirs:      cfg.Dirs,
		patterns:  cfg.Patterns,
		debounce:  cfg.DebounceDur,
		logger:    logger.With("component", "watch"),
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel receives one signal per burst
// of relevant changes. If a directory cannot be watched the underlying
// watcher is released before the error is returned.
func (w *Watcher) Start() (<-chan struct{}, error) {
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			_ = w.fsWatcher.Close()
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// Run refreshes r after every change until ctx ends. Refresh failures are
// logged; the previous state stays active.
func (w *Watcher) Run(ctx context.Context, r Refresher) error {
	changes, err := w.Start()
	if err != nil {
		return err
	}
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if err := r.Refresh(ctx); err != nil {
				w.logger.Error("refresh after change failed", "err", err)
				continue
			}
			w.logger.Info("refreshed after change")
		}
	}
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
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
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if len(w.patterns) == 0 {
		return true
	}
	base := filepath.Base(ev.Name)
	for _, p := range w.patterns {
		if ok, _ := path.Match(p, base); ok {
			return true
		}
	}
	return false
}
