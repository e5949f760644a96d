package storage

// Backend names used in logs and metrics.
const (
	BackendLocal   = "local"
	BackendSession = "session"
	BackendCookie  = "cookie"
	BackendDB      = "db"
	BackendNoop    = "noop"
)

// Storage reads and writes one value per key.
type Storage[T any] interface {
	// GetValue returns the value stored under key. ok is false when nothing
	// is stored or the stored text cannot be turned into a T.
	GetValue(key string) (value T, ok bool)

	// SetValue stores value under key, replacing any previous value.
	SetValue(key string, value T)

	// DeleteValue removes key. Deleting a missing key does nothing.
	DeleteValue(key string)
}

// ListenerID identifies a registered listener.
type ListenerID uint64

// SelfUpdateStorage is a Storage that reports external changes.
type SelfUpdateStorage[T any] interface {
	Storage[T]

	// AddListener registers fn for external changes to key. Listeners for
	// the same key run in registration order.
	AddListener(key string, fn func(T)) ListenerID

	// RemoveListener removes the listener registered for key under id.
	RemoveListener(key string, id ListenerID)
}
