package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileState identifies one observed version of the config file. The mtime is
// the cheap first-pass check; the hash confirms the content actually changed.
type fileState struct {
	mtime time.Time
	hash  [sha256.Size]byte
}

// Watcher polls a config file and invokes a callback when a valid rewrite
// lands. Polling rather than inotify keeps it working across bind mounts and
// editors that replace the file. Hot-reloadable fields are applied via [Diff]
// by the callback.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	seen    fileState

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path immediately, failing if the file is missing or
// invalid, then polls it in a background goroutine until [Watcher.Stop].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, state, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.seen = state

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check notices file changes and swaps in the new config. An invalid rewrite
// keeps the old config; a mid-service typo must never take the pipeline down.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, state, err := w.read()
	if err != nil {
		slog.Warn("config watcher: failed to load config, keeping previous",
			"path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if state.hash == w.seen.hash {
		// Touched, not changed.
		w.seen.mtime = state.mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.seen = state
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback can call Current().
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// read loads and validates the file, returning the parsed config together
// with the file state used for change detection.
func (w *Watcher) read() (*Config, fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}

	return cfg, fileState{mtime: info.ModTime(), hash: sha256.Sum256(data)}, nil
}
