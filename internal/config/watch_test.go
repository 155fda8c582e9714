package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alxayo/go-v1proto/internal/logger"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.json")
	if err := os.WriteFile(path, []byte(`{"logLevel":"info","adminOpen":false}`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	changes := make(chan Tunables, 4)
	w, err := NewWatcher(path, logger.Logger(), func(t Tunables) { changes <- t })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`{"logLevel":"debug","adminOpen":true}`), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	select {
	case got := <-changes:
		if got.LogLevel != "debug" || !got.AdminOpen {
			t.Fatalf("unexpected tunables: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("watcher never observed the rewrite")
	}
}

func TestWatcherCloseStopsGoroutine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	w, err := NewWatcher(path, logger.Logger(), func(Tunables) {})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close should be idempotent: %v", err)
	}
}
