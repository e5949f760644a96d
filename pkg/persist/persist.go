// Package persist binds a reactive store to a storage backend.
//
// Persist hydrates the store from the stored value, writes every later
// change back, and applies external changes reported by the backend:
//
//	theme := store.NewWritable("light")
//	p := persist.Persist[string](theme, storage.LocalStorage[string](), "theme")
//	p.Set("dark")            // stored as "dark" under "theme"
//	p.Store.SubscriberCount() // the bound *store.Writable is still at hand
//	p.Delete()               // removes the stored value; later Sets write again
package persist

import (
	"sync"

	"github.com/vango-dev/persist/pkg/storage"
)

// Store is the reactive store contract Persist needs. Subscribe must call
// fn immediately with the current value and again on every change, and
// return a function that stops the calls.
type Store[T any] interface {
	Set(value T)
	Subscribe(fn func(T)) (unsubscribe func())
}

// Persisted is a store of type S bound to a key in a storage backend. S
// keeps its full method set through the Store field; Get, Set, Update and
// Subscribe are also available on the binding itself.
type Persisted[T any, S Store[T]] struct {
	// Store is the bound store.
	Store S

	adapter storage.Storage[T]
	key     string

	selfUpdate storage.SelfUpdateStorage[T]
	listener   storage.ListenerID

	unsubscribe func()
	closeOnce   sync.Once
}

// Persist binds s to key in adapter. A value already stored under key is
// set on s; otherwise s keeps its value and that value is written. When the
// adapter reports external changes, they are set on s as well.
func Persist[T any, S Store[T]](s S, adapter storage.Storage[T], key string) *Persisted[T, S] {
	p := &Persisted[T, S]{
		Store:   s,
		adapter: adapter,
		key:     key,
	}

	// The listener goes first so an asynchronous read started by GetValue
	// cannot complete before it is registered.
	if su, ok := adapter.(storage.SelfUpdateStorage[T]); ok {
		p.selfUpdate = su
		p.listener = su.AddListener(key, func(value T) {
			s.Set(value)
		})
	}

	if value, ok := adapter.GetValue(key); ok {
		s.Set(value)
	}

	p.unsubscribe = s.Subscribe(func(value T) {
		adapter.SetValue(key, value)
	})
	return p
}

// Get returns the store's current value.
func (p *Persisted[T, S]) Get() T {
	var value T
	unsubscribe := p.Store.Subscribe(func(v T) { value = v })
	unsubscribe()
	return value
}

// Set sets the store's value, which is then written to the backend.
func (p *Persisted[T, S]) Set(value T) {
	p.Store.Set(value)
}

// Update sets the store's value to fn applied to the current one.
func (p *Persisted[T, S]) Update(fn func(T) T) {
	p.Store.Set(fn(p.Get()))
}

// Subscribe registers fn on the store. It is called with the current value
// and again on every change.
func (p *Persisted[T, S]) Subscribe(fn func(T)) (unsubscribe func()) {
	return p.Store.Subscribe(fn)
}

// Key returns the storage key.
func (p *Persisted[T, S]) Key() string {
	return p.key
}

// Delete removes the stored value. The binding stays active, so the next
// change to the store is written again.
func (p *Persisted[T, S]) Delete() {
	p.adapter.DeleteValue(p.key)
}

// Close stops writing store changes and stops applying external changes.
// The stored value is kept.
func (p *Persisted[T, S]) Close() {
	p.closeOnce.Do(func() {
		p.unsubscribe()
		if p.selfUpdate != nil {
			p.selfUpdate.RemoveListener(p.key, p.listener)
		}
	})
}
