package storage

import (
	"sync"
	"time"

	"github.com/vango-dev/persist/pkg/webstorage"
)

// AreaAdapter is a Storage over a webstorage.Area. Values are stored as
// JSON text. It is created by LocalStorage and SessionStorage.
type AreaAdapter[T any] struct {
	area    webstorage.Area
	window  webstorage.Window
	listen  bool
	backend string
	diag    diagnostics

	listeners listenerRegistry[T]

	connMu     sync.Mutex
	disconnect func()
}

var _ SelfUpdateStorage[int] = (*AreaAdapter[int])(nil)

// LocalStorage returns a Storage over the window's local area. Other
// windows of the same origin share it. Without a window, or when the window
// has no local area, it returns NoopStorage.
func LocalStorage[T any](opts ...Option) Storage[T] {
	o := newOptions(opts)
	d := newDiagnostics(BackendLocal, o)
	if o.window == nil {
		d.unavailable("no window")
		return NoopStorage[T]()
	}
	area := o.window.LocalStorage()
	if area == nil {
		d.unavailable("window has no local storage")
		return NoopStorage[T]()
	}
	return newAreaAdapter[T](area, BackendLocal, o, d)
}

// SessionStorage returns a Storage over the window's session area, which
// lives as long as the window and is shared with its frames. Without a
// window, or when the window has no session area, it returns NoopStorage.
func SessionStorage[T any](opts ...Option) Storage[T] {
	o := newOptions(opts)
	d := newDiagnostics(BackendSession, o)
	if o.window == nil {
		d.unavailable("no window")
		return NoopStorage[T]()
	}
	area := o.window.SessionStorage()
	if area == nil {
		d.unavailable("window has no session storage")
		return NoopStorage[T]()
	}
	return newAreaAdapter[T](area, BackendSession, o, d)
}

func newAreaAdapter[T any](area webstorage.Area, backend string, o *options, d diagnostics) *AreaAdapter[T] {
	return &AreaAdapter[T]{
		area:    area,
		window:  o.window,
		listen:  o.listen,
		backend: backend,
		diag:    d,
	}
}

// GetValue returns the decoded value stored under key.
func (s *AreaAdapter[T]) GetValue(key string) (T, bool) {
	defer s.diag.metrics.ObserveOp(s.backend, "get", time.Now())

	raw, ok := s.area.GetItem(key)
	if !ok {
		var zero T
		return zero, false
	}
	value, ok, err := decode[T](raw)
	if !ok {
		s.diag.warn("P003", key, err)
	}
	return value, ok
}

// SetValue stores value as JSON under key. Failed writes are logged.
func (s *AreaAdapter[T]) SetValue(key string, value T) {
	defer s.diag.metrics.ObserveOp(s.backend, "set", time.Now())

	raw, err := encode(value)
	if err != nil {
		s.diag.warn("P002", key, err)
		return
	}
	if err := s.area.SetItem(key, raw); err != nil {
		s.diag.warn("P005", key, err)
	}
}

// DeleteValue removes key from the area.
func (s *AreaAdapter[T]) DeleteValue(key string) {
	defer s.diag.metrics.ObserveOp(s.backend, "delete", time.Now())
	s.area.RemoveItem(key)
}

// AddListener registers fn for changes to key made by other windows. The
// first listener subscribes to the window's storage events when the
// storage was created with ListenExternalChanges.
func (s *AreaAdapter[T]) AddListener(key string, fn func(T)) ListenerID {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	id, first := s.listeners.add(key, fn)
	s.diag.metrics.ListenerAdded(s.backend)
	if first && s.listen {
		s.disconnect = s.window.AddStorageListener(s.handleEvent)
	}
	return id
}

// RemoveListener removes the listener registered for key under id. Removing
// the last listener unsubscribes from storage events.
func (s *AreaAdapter[T]) RemoveListener(key string, id ListenerID) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	removed, last := s.listeners.remove(key, id)
	if !removed {
		return
	}
	s.diag.metrics.ListenerRemoved(s.backend)
	if last && s.disconnect != nil {
		s.disconnect()
		s.disconnect = nil
	}
}

// Connected reports whether the storage is subscribed to storage events.
func (s *AreaAdapter[T]) Connected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.disconnect != nil
}

func (s *AreaAdapter[T]) handleEvent(ev webstorage.StorageEvent) {
	if ev.StorageArea != s.area || ev.Cleared {
		return
	}
	fns := s.listeners.forKey(ev.Key)
	if len(fns) == 0 {
		return
	}

	raw := "null"
	if ev.NewValue != nil {
		raw = *ev.NewValue
	}
	value, ok, err := decode[T](raw)
	if !ok {
		s.diag.warn("P003", ev.Key, err)
		return
	}
	for _, fn := range fns {
		fn(value)
		s.diag.metrics.Notified(s.backend)
	}
}
