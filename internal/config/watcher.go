package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the previous and the reloaded config together with
// their [Diff].
type ChangeFunc func(old, new *Config, diff ConfigDiff)

// Watcher keeps the config file's latest valid content current. It reacts
// to filesystem events on the file's directory, polls the modification time
// as a fallback and can be asked to [Watcher.Reload] at once, e.g. on
// SIGHUP. Invalid edits are logged and the previous config stays.
type Watcher struct {
	path       string
	interval   time.Duration
	fileEvents bool
	onChange   ChangeFunc
	log        *slog.Logger
	events     *fsnotify.Watcher

	// reloadMu serialises reloads so callbacks see changes in order.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	mtime   time.Time
	sum     [sha256.Size]byte

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds; a
// negative interval disables polling.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d != 0 {
			w.interval = d
		}
	}
}

// WithFileEvents toggles reloading on filesystem notifications. It is on
// by default.
func WithFileEvents(on bool) WatcherOption {
	return func(w *Watcher) { w.fileEvents = on }
}

// WithWatcherLogger sets the logger used for reload messages.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher loads path and watches it in background goroutines until
// [Watcher.Stop]. When filesystem notifications are unavailable it falls
// back to polling alone.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:       filepath.Clean(path),
		interval:   5 * time.Second,
		fileEvents: true,
		onChange:   onChange,
		log:        slog.Default(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.mtime, w.sum = snap.cfg, snap.mtime, snap.sum

	if w.fileEvents {
		if err := w.subscribe(); err != nil {
			w.log.Warn("config: file notifications unavailable, polling only", "path", w.path, "err", err)
		}
	}
	if w.interval > 0 {
		go w.poll()
	}
	return w, nil
}

// subscribe watches the directory rather than the file so that editors
// replacing the file by rename keep triggering reloads.
func (w *Watcher) subscribe() error {
	ev, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := ev.Add(filepath.Dir(w.path)); err != nil {
		ev.Close()
		return err
	}
	w.events = ev
	go w.notifyLoop()
	return nil
}

func (w *Watcher) notifyLoop() {
	for {
		select {
		case <-w.done:
			return
		case e, ok := <-w.events.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			// The content hash filters out duplicate events.
			if _, err := w.reload(true); err != nil {
				w.log.Warn("config: keeping previous config", "path", w.path, "err", err)
			}
		case err, ok := <-w.events.Errors:
			if !ok {
				return
			}
			w.log.Warn("config: file notification error", "path", w.path, "err", err)
		}
	}
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.events != nil {
			w.events.Close()
		}
	})
}

// Reload reads the file now, regardless of its modification time. It
// reports whether the content changed; the change callback has run by the
// time it returns.
func (w *Watcher) Reload() (bool, error) {
	return w.reload(true)
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := w.reload(false); err != nil {
				w.log.Warn("config: keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

func (w *Watcher) reload(force bool) (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return false, err
		}
		w.mu.Lock()
		same := info.ModTime().Equal(w.mtime)
		w.mu.Unlock()
		if same {
			return false, nil
		}
	}

	snap, err := w.read()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.mtime = snap.mtime
	if snap.sum == w.sum {
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.sum = snap.cfg, snap.sum
	w.mu.Unlock()

	d := Diff(old, snap.cfg)
	w.log.Info("config: reloaded",
		"path", w.path,
		"game_changed", d.GameChanged,
		"recognition_changed", d.RecognitionChanged,
		"log_level_changed", d.LogLevelChanged,
	)
	if len(d.RestartRequired) > 0 {
		w.log.Warn("config: changes take effect after a restart", "sections", d.RestartRequired)
	}
	if w.onChange != nil {
		w.onChange(old, snap.cfg, d)
	}
	return true, nil
}

type snapshot struct {
	cfg   *Config
	mtime time.Time
	sum   [sha256.Size]byte
}

func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
