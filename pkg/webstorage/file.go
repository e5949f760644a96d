package webstorage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LocalFileName is the name of the file holding a file-backed local area.
const LocalFileName = "local.json"

// FileOption configures a FileWindow.
type FileOption func(*fileConfig)

type fileConfig struct {
	quota  int
	logger *slog.Logger
	url    string
}

// WithFileQuota sets the size limit of the local area in bytes.
// Default: DefaultQuota.
func WithFileQuota(bytes int) FileOption {
	return func(c *fileConfig) {
		c.quota = bytes
	}
}

// WithFileLogger sets the logger used for watcher diagnostics.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(c *fileConfig) {
		c.logger = logger
	}
}

// WithOriginURL sets the URL reported in storage events.
// Default: file://<dir>.
func WithOriginURL(url string) FileOption {
	return func(c *fileConfig) {
		c.url = url
	}
}

// FileWindow is a browsing context whose local area lives on disk. Several
// FileWindows, in one process or many, opened on the same directory share
// the area and see each other's writes as storage events. The session area
// is private to the window and kept in memory.
type FileWindow struct {
	dir    string
	url    string
	logger *slog.Logger

	local   *fileArea
	session Area
	memory  *MemoryWindow

	listeners listenerSet

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

var _ Window = (*FileWindow)(nil)

// OpenFileWindow opens a window whose local area is <dir>/local.json.
// The directory is created if needed.
func OpenFileWindow(dir string, opts ...FileOption) (*FileWindow, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage directory: %w", err)
	}

	cfg := &fileConfig{
		quota:  DefaultQuota,
		logger: slog.Default(),
		url:    "file://" + filepath.ToSlash(abs),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", abs, err)
	}

	memory := NewOrigin(cfg.url, WithQuota(cfg.quota)).OpenWindow()
	w := &FileWindow{
		dir:     abs,
		url:     cfg.url,
		logger:  cfg.logger.With("component", "webstorage", "dir", abs),
		session: memory.SessionStorage(),
		memory:  memory,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	w.local = &fileArea{
		w:     w,
		path:  filepath.Join(abs, LocalFileName),
		quota: cfg.quota,
		items: make(map[string]string),
	}

	w.local.mu.Lock()
	_, err = w.local.refreshLocked(true)
	w.local.mu.Unlock()
	if err != nil {
		watcher.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.watchLoop()
	return w, nil
}

// Dir returns the directory holding the local area.
func (w *FileWindow) Dir() string {
	return w.dir
}

// LocalStorage returns the file-backed local area.
func (w *FileWindow) LocalStorage() Area {
	return w.local
}

// SessionStorage returns the window's private in-memory session area.
func (w *FileWindow) SessionStorage() Area {
	return w.session
}

// AddStorageListener registers fn for changes made to the local area by
// other windows or processes.
func (w *FileWindow) AddStorageListener(fn func(StorageEvent)) func() {
	if fn == nil {
		return func() {}
	}
	id, _ := w.listeners.add(fn)

	var once sync.Once
	return func() {
		once.Do(func() { w.listeners.remove(id) })
	}
}

// Close stops watching the directory.
func (w *FileWindow) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
		w.memory.Close()
		w.listeners.reset()
	})
	return err
}

func (w *FileWindow) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != LocalFileName {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			w.local.mu.Lock()
			events, err := w.local.refreshLocked(true)
			w.local.mu.Unlock()
			if err != nil {
				w.logger.Warn("reloading local area", "error", err)
				continue
			}
			w.dispatch(events)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *FileWindow) dispatch(events []StorageEvent) {
	for _, ev := range events {
		w.listeners.dispatch(ev)
	}
}

// fileArea is the local area persisted as a JSON object.
type fileArea struct {
	w     *FileWindow
	path  string
	quota int

	mu      sync.Mutex
	items   map[string]string
	size    int
	modTime time.Time
	fsize   int64
}

// refreshLocked reloads the file when it changed on disk (always when force
// is set) and returns events for every key that differs from the snapshot.
func (a *fileArea) refreshLocked(force bool) ([]StorageEvent, error) {
	info, err := os.Stat(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		if len(a.items) == 0 && a.modTime.IsZero() {
			return nil, nil
		}
		a.modTime, a.fsize = time.Time{}, 0
		return a.replaceLocked(map[string]string{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", a.path, err)
	}
	if !force && info.ModTime().Equal(a.modTime) && info.Size() == a.fsize {
		return nil, nil
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.path, err)
	}
	items := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", a.path, err)
		}
	}

	a.modTime, a.fsize = info.ModTime(), info.Size()
	return a.replaceLocked(items), nil
}

func (a *fileArea) replaceLocked(items map[string]string) []StorageEvent {
	var events []StorageEvent
	for key, value := range items {
		old, existed := a.items[key]
		if existed && old == value {
			continue
		}
		ev := a.event(key)
		ev.NewValue = stringPtr(value)
		if existed {
			ev.OldValue = stringPtr(old)
		}
		events = append(events, ev)
	}
	for key, old := range a.items {
		if _, ok := items[key]; !ok {
			ev := a.event(key)
			ev.OldValue = stringPtr(old)
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })

	a.items = items
	a.size = 0
	for k, v := range items {
		a.size += len(k) + len(v)
	}
	return events
}

func (a *fileArea) event(key string) StorageEvent {
	return StorageEvent{
		Key:         key,
		URL:         a.w.url,
		Area:        AreaLocal,
		StorageArea: a,
	}
}

// writeLocked replaces the file atomically with the current snapshot.
func (a *fileArea) writeLocked() error {
	data, err := json.MarshalIndent(a.items, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.path), ".local-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		os.Remove(tmpName)
		return err
	}

	if info, err := os.Stat(a.path); err == nil {
		a.modTime, a.fsize = info.ModTime(), info.Size()
	}
	return nil
}

// sync refreshes the snapshot and delivers any external changes found.
func (a *fileArea) sync() {
	a.mu.Lock()
	events, err := a.refreshLocked(false)
	a.mu.Unlock()
	if err != nil {
		a.w.logger.Warn("reloading local area", "error", err)
		return
	}
	a.w.dispatch(events)
}

func (a *fileArea) GetItem(key string) (string, bool) {
	a.sync()

	a.mu.Lock()
	defer a.mu.Unlock()
	value, ok := a.items[key]
	return value, ok
}

func (a *fileArea) SetItem(key, value string) error {
	a.mu.Lock()
	events, err := a.refreshLocked(false)
	if err != nil {
		a.mu.Unlock()
		return err
	}

	old, existed := a.items[key]
	if existed && old == value {
		a.mu.Unlock()
		a.w.dispatch(events)
		return nil
	}

	size := a.size + len(value)
	if existed {
		size -= len(old)
	} else {
		size += len(key)
	}
	if a.quota > 0 && size > a.quota {
		a.mu.Unlock()
		a.w.dispatch(events)
		return ErrQuotaExceeded
	}

	prevSize := a.size
	a.items[key] = value
	a.size = size
	if err := a.writeLocked(); err != nil {
		if existed {
			a.items[key] = old
		} else {
			delete(a.items, key)
		}
		a.size = prevSize
		a.mu.Unlock()
		a.w.dispatch(events)
		return fmt.Errorf("writing %s: %w", a.path, err)
	}
	a.mu.Unlock()

	a.w.dispatch(events)
	return nil
}

func (a *fileArea) RemoveItem(key string) {
	a.mu.Lock()
	events, err := a.refreshLocked(false)
	if err != nil {
		a.mu.Unlock()
		a.w.logger.Warn("reloading local area", "error", err)
		return
	}

	old, existed := a.items[key]
	if existed {
		delete(a.items, key)
		a.size -= len(key) + len(old)
		if err := a.writeLocked(); err != nil {
			a.w.logger.Warn("removing item", "key", key, "error", err)
		}
	}
	a.mu.Unlock()

	a.w.dispatch(events)
}

func (a *fileArea) Clear() {
	a.mu.Lock()
	events, err := a.refreshLocked(false)
	if err != nil {
		a.mu.Unlock()
		a.w.logger.Warn("reloading local area", "error", err)
		return
	}

	if len(a.items) > 0 {
		a.items = make(map[string]string)
		a.size = 0
		if err := a.writeLocked(); err != nil {
			a.w.logger.Warn("clearing local area", "error", err)
		}
	}
	a.mu.Unlock()

	a.w.dispatch(events)
}

func (a *fileArea) Keys() []string {
	a.sync()

	a.mu.Lock()
	keys := make([]string, 0, len(a.items))
	for k := range a.items {
		keys = append(keys, k)
	}
	a.mu.Unlock()

	sort.Strings(keys)
	return keys
}
