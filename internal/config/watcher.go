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

const defaultPollInterval = 5 * time.Second

// Watcher reloads the engine configuration when the file on disk changes,
// so operators can retune provider pool weights, model routing, and
// interview limits on a running node without restarting active interviews.
// It polls rather than using inotify: the config is commonly a Kubernetes
// ConfigMap projection or a bind mount, where rename-based updates defeat
// inode watches.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// change detection: mtime as the cheap first pass, content hash to
	// ignore touch-only updates
	lastMtime time.Time
	lastSum   [sha256.Size]byte
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

// NewWatcher loads the config at path and starts polling it in the
// background. onChange runs after every successful reload with the previous
// and the new config; an invalid file on disk never replaces a valid
// in-memory config.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = snap.cfg
	w.lastSum = snap.sum
	w.lastMtime = snap.mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop terminates the polling goroutine. Safe to call more than once.
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

// check swaps in a freshly parsed config when the file content changed.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	// mtime is the cheap pre-filter; unchanged files skip the read entirely.
	if info.ModTime().Equal(mtime) {
		return
	}

	snap, err := w.read()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.sum == w.lastSum {
		// touched but identical content
		w.lastMtime = snap.mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = snap.cfg
	w.lastSum = snap.sum
	w.lastMtime = snap.mtime
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// The callback runs outside the lock so it can call Current.
	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
}

type fileSnapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// read parses and validates the file, returning the config together with
// the content hash and mtime used for change detection.
func (w *Watcher) read() (fileSnapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileSnapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fileSnapshot{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return fileSnapshot{}, err
	}

	return fileSnapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
