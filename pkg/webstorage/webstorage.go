package webstorage

import (
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by SetItem when the area has no room left.
var ErrQuotaExceeded = errors.New("webstorage: quota exceeded")

// ErrClosed is returned by SetItem on an area whose window has been closed.
var ErrClosed = errors.New("webstorage: window closed")

// DefaultQuota is the per-area size limit in bytes (keys plus values), the
// limit browsers commonly apply to local storage.
const DefaultQuota = 5 * 1024 * 1024

// Area is a string key-value storage area.
// Implementations must be safe for concurrent use.
type Area interface {
	// GetItem returns the value stored under key and whether it exists.
	GetItem(key string) (string, bool)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is a no-op.
	RemoveItem(key string)

	// Clear deletes every key.
	Clear()

	// Keys returns the stored keys in sorted order.
	Keys() []string
}

// AreaName identifies which kind of area an event refers to.
type AreaName string

const (
	AreaLocal   AreaName = "local"
	AreaSession AreaName = "session"
)

// StorageEvent reports a change made to an area by another browsing
// context. It is never delivered to the context that made the change.
type StorageEvent struct {
	// Key is the changed key. Empty when Cleared is set.
	Key string `json:"key"`

	// OldValue is the previous value, nil if the key did not exist.
	OldValue *string `json:"oldValue"`

	// NewValue is the new value, nil if the key was removed.
	NewValue *string `json:"newValue"`

	// Cleared is set when the whole area was cleared.
	Cleared bool `json:"cleared,omitempty"`

	// URL is the origin (or document URL) of the context that wrote.
	URL string `json:"url"`

	// Area names the kind of area that changed.
	Area AreaName `json:"area"`

	// StorageArea is the receiving window's own view of the changed area.
	// Compare it with the area you wrap to filter events.
	StorageArea Area `json:"-"`
}

// Window is a browsing context with local and session storage.
type Window interface {
	// LocalStorage returns the origin's local area, or nil if unavailable.
	LocalStorage() Area

	// SessionStorage returns the context's session area, or nil if unavailable.
	SessionStorage() Area

	// AddStorageListener registers fn for storage events raised by other
	// contexts. The returned function removes the registration.
	AddStorageListener(fn func(StorageEvent)) (remove func())
}

var (
	defaultMu     sync.RWMutex
	defaultWindow Window
	defaultSet    bool
)

// Default returns the process-wide window. In a browser build it is the
// global window; elsewhere it is nil until SetDefault installs one.
func Default() Window {
	defaultMu.RLock()
	if defaultSet {
		w := defaultWindow
		defaultMu.RUnlock()
		return w
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !defaultSet {
		defaultWindow = platformWindow()
		defaultSet = true
	}
	return defaultWindow
}

// SetDefault replaces the process-wide window. Passing nil makes storage
// adapters built without an explicit window degrade to no-ops.
func SetDefault(w Window) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultWindow = w
	defaultSet = true
}

func stringPtr(s string) *string {
	return &s
}

// listenerSet is the storage-event handler list shared by the Window
// implementations.
type listenerSet struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []listenerEntry
}

type listenerEntry struct {
	id uint64
	fn func(StorageEvent)
}

// add registers fn and reports whether it is the first handler.
func (s *listenerSet) add(fn func(StorageEvent)) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.handlers = append(s.handlers, listenerEntry{id: s.nextID, fn: fn})
	return s.nextID, len(s.handlers) == 1
}

// remove deletes the handler with id and reports whether none remain.
func (s *listenerSet) remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.handlers {
		if h.id == id {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			break
		}
	}
	return len(s.handlers) == 0
}

func (s *listenerSet) reset() {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// dispatch calls every handler without holding the lock.
func (s *listenerSet) dispatch(ev StorageEvent) {
	s.mu.Lock()
	handlers := make([]listenerEntry, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, h := range handlers {
		h.fn(ev)
	}
}
