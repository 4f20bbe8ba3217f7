package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/intervoq/intervoq/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
memory:
  postgres_dsn: "postgres://localhost/intervoq"
  redis_addr: "localhost:6379"
`

const watcherUpdatedYAML = `
server:
  log_level: debug
memory:
  postgres_dsn: "postgres://localhost/intervoq"
  redis_addr: "localhost:6379"
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("log_level = %q, want info", got)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherInvalidYAML)

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	var (
		mu      sync.Mutex
		changed bool
		gotNew  *config.Config
	)
	w, err := config.NewWatcher(path, func(_, new *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		changed = true
		gotNew = new
	}, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Backdate mtime so the rewrite below is guaranteed to look newer.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	writeFile(t, path, watcherUpdatedYAML)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := changed
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("change never detected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotNew.Server.LogLevel != config.LogDebug {
		t.Errorf("new log_level = %q, want debug", gotNew.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() not updated")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	writeFile(t, path, watcherInvalidYAML)

	// Give the watcher several poll cycles to (wrongly) apply the bad config.
	time.Sleep(100 * time.Millisecond)

	if got := w.Current().Server.LogLevel; got != config.LogInfo {
		t.Errorf("log_level = %q, want the previous valid value", got)
	}
}
