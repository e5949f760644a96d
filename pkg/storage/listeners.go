package storage

import "sync"

type listenerEntry[T any] struct {
	key string
	id  ListenerID
	fn  func(T)
}

// listenerRegistry is an ordered list of per-key listeners.
type listenerRegistry[T any] struct {
	mu      sync.RWMutex
	entries []listenerEntry[T]
	nextID  ListenerID
}

// add appends a listener and reports whether it is the only one.
func (r *listenerRegistry[T]) add(key string, fn func(T)) (ListenerID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.entries = append(r.entries, listenerEntry[T]{key: key, id: r.nextID, fn: fn})
	return r.nextID, len(r.entries) == 1
}

// remove deletes the entry matching key and id. removed reports whether one
// matched; last reports whether the registry is now empty.
func (r *listenerRegistry[T]) remove(key string, id ListenerID) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.key == key && e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true, len(r.entries) == 0
		}
	}
	return false, false
}

// forKey returns a copy of the listeners registered for key.
func (r *listenerRegistry[T]) forKey(key string) []func(T) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var fns []func(T)
	for _, e := range r.entries {
		if e.key == key {
			fns = append(fns, e.fn)
		}
	}
	return fns
}

func (r *listenerRegistry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
