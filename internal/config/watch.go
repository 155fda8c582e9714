package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Tunables are the config fields safe to change without a process restart.
type Tunables struct {
	LogLevel  string `json:"logLevel"`
	AdminOpen bool   `json:"adminOpen"`
}

// Watcher watches a small JSON tunables file and invokes onChange whenever
// it is written.
type Watcher struct {
	path     string
	log      *slog.Logger
	fsw      *fsnotify.Watcher
	onChange func(Tunables)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWatcher starts watching path's parent directory (fsnotify watches
// directories more reliably than bare files across editors that
// write-then-rename) and calls onChange with the freshly parsed tunables
// every time path itself changes.
func NewWatcher(path string, log *slog.Logger, onChange func(Tunables)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		log:      log,
		fsw:      fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			t, err := loadTunables(w.path)
			if err != nil {
				w.log.Warn("config: failed to reload tunables", "path", w.path, "error", err)
				continue
			}
			w.onChange(t)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config: watcher error", "error", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}

func loadTunables(path string) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}
	var t Tunables
	if err := json.Unmarshal(data, &t); err != nil {
		return Tunables{}, err
	}
	return t, nil
}
