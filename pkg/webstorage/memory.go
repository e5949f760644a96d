package webstorage

import (
	"sort"
	"sync"
)

// Origin is an in-memory origin. Windows opened on it share one local area.
type Origin struct {
	url   string
	quota int
	local *backing
}

// OriginOption configures an Origin.
type OriginOption func(*originConfig)

type originConfig struct {
	quota int
}

// WithQuota sets the size limit of every area of the origin in bytes.
// Zero or a negative value disables the limit. Default: DefaultQuota.
func WithQuota(bytes int) OriginOption {
	return func(c *originConfig) {
		c.quota = bytes
	}
}

// NewOrigin creates an in-memory origin identified by url.
func NewOrigin(url string, opts ...OriginOption) *Origin {
	cfg := &originConfig{quota: DefaultQuota}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Origin{
		url:   url,
		quota: cfg.quota,
		local: newBacking(AreaLocal, cfg.quota),
	}
}

// URL returns the origin URL.
func (o *Origin) URL() string {
	return o.url
}

// OpenWindow opens a top-level window with a fresh session area.
func (o *Origin) OpenWindow() *MemoryWindow {
	return o.openWindow(newBacking(AreaSession, o.quota))
}

func (o *Origin) openWindow(session *backing) *MemoryWindow {
	w := &MemoryWindow{origin: o}
	w.local = o.local.attach(w)
	w.session = session.attach(w)
	return w
}

// MemoryWindow is a browsing context on an in-memory Origin.
type MemoryWindow struct {
	origin  *Origin
	local   *view
	session *view

	listeners listenerSet

	mu     sync.Mutex
	closed bool
}

var _ Window = (*MemoryWindow)(nil)

// OpenFrame opens a nested context that shares this window's session area.
func (w *MemoryWindow) OpenFrame() *MemoryWindow {
	return w.origin.openWindow(w.session.b)
}

// Origin returns the origin the window belongs to.
func (w *MemoryWindow) Origin() *Origin {
	return w.origin
}

// LocalStorage returns the window's view of the origin's local area.
func (w *MemoryWindow) LocalStorage() Area {
	return w.local
}

// SessionStorage returns the window's view of its session area.
func (w *MemoryWindow) SessionStorage() Area {
	return w.session
}

// AddStorageListener registers fn for storage events raised by other windows.
func (w *MemoryWindow) AddStorageListener(fn func(StorageEvent)) func() {
	if fn == nil {
		return func() {}
	}
	id, _ := w.listeners.add(fn)

	var once sync.Once
	return func() {
		once.Do(func() { w.listeners.remove(id) })
	}
}

// ListenerCount returns the number of registered storage listeners.
func (w *MemoryWindow) ListenerCount() int {
	return w.listeners.len()
}

// Close detaches the window from its areas. A closed window receives no
// further events and its areas reject writes with ErrClosed.
func (w *MemoryWindow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.local.b.detach(w.local)
	w.session.b.detach(w.session)
	w.listeners.reset()
}

func (w *MemoryWindow) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// backing is the shared item map behind an area. Each window sees it
// through its own view so events can name the receiver's area.
type backing struct {
	name  AreaName
	quota int

	mu    sync.RWMutex
	items map[string]string
	size  int

	viewMu sync.RWMutex
	views  []*view
}

func newBacking(name AreaName, quota int) *backing {
	return &backing{
		name:  name,
		quota: quota,
		items: make(map[string]string),
	}
}

func (b *backing) attach(w *MemoryWindow) *view {
	v := &view{b: b, w: w}
	b.viewMu.Lock()
	b.views = append(b.views, v)
	b.viewMu.Unlock()
	return v
}

func (b *backing) detach(v *view) {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	for i, existing := range b.views {
		if existing == v {
			b.views = append(b.views[:i], b.views[i+1:]...)
			return
		}
	}
}

// broadcast delivers ev to every view except the writer's.
func (b *backing) broadcast(from *view, ev StorageEvent) {
	b.viewMu.RLock()
	views := make([]*view, 0, len(b.views))
	for _, v := range b.views {
		if v != from {
			views = append(views, v)
		}
	}
	b.viewMu.RUnlock()

	for _, v := range views {
		ev.StorageArea = v
		v.w.listeners.dispatch(ev)
	}
}

// view is one window's handle on a backing. It implements Area.
type view struct {
	b *backing
	w *MemoryWindow
}

func (v *view) GetItem(key string) (string, bool) {
	v.b.mu.RLock()
	defer v.b.mu.RUnlock()
	value, ok := v.b.items[key]
	return value, ok
}

func (v *view) SetItem(key, value string) error {
	if v.w.isClosed() {
		return ErrClosed
	}

	v.b.mu.Lock()
	old, existed := v.b.items[key]
	if existed && old == value {
		v.b.mu.Unlock()
		return nil
	}

	size := v.b.size + len(value)
	if existed {
		size -= len(old)
	} else {
		size += len(key)
	}
	if v.b.quota > 0 && size > v.b.quota {
		v.b.mu.Unlock()
		return ErrQuotaExceeded
	}

	v.b.items[key] = value
	v.b.size = size
	v.b.mu.Unlock()

	ev := StorageEvent{
		Key:      key,
		NewValue: stringPtr(value),
		URL:      v.w.origin.url,
		Area:     v.b.name,
	}
	if existed {
		ev.OldValue = stringPtr(old)
	}
	v.b.broadcast(v, ev)
	return nil
}

func (v *view) RemoveItem(key string) {
	if v.w.isClosed() {
		return
	}

	v.b.mu.Lock()
	old, existed := v.b.items[key]
	if !existed {
		v.b.mu.Unlock()
		return
	}
	delete(v.b.items, key)
	v.b.size -= len(key) + len(old)
	v.b.mu.Unlock()

	v.b.broadcast(v, StorageEvent{
		Key:      key,
		OldValue: stringPtr(old),
		URL:      v.w.origin.url,
		Area:     v.b.name,
	})
}

func (v *view) Clear() {
	if v.w.isClosed() {
		return
	}

	v.b.mu.Lock()
	if len(v.b.items) == 0 {
		v.b.mu.Unlock()
		return
	}
	v.b.items = make(map[string]string)
	v.b.size = 0
	v.b.mu.Unlock()

	v.b.broadcast(v, StorageEvent{
		Cleared: true,
		URL:     v.w.origin.url,
		Area:    v.b.name,
	})
}

func (v *view) Keys() []string {
	v.b.mu.RLock()
	keys := make([]string, 0, len(v.b.items))
	for k := range v.b.items {
		keys = append(keys, k)
	}
	v.b.mu.RUnlock()

	sort.Strings(keys)
	return keys
}
