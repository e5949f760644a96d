package store

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Readable is a value container that can be observed.
type Readable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn, calls it with the current value, and calls it
	// again after every change. The returned function removes fn.
	Subscribe(fn func(T)) (unsubscribe func())
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Writable is a reactive value container safe for concurrent use.
type Writable[T any] struct {
	id uint64

	// value is the current value.
	value T

	// mu protects value.
	mu sync.RWMutex

	subs  []subscriber[T]
	subMu sync.RWMutex

	// equal is the equality function used to determine if the value changed.
	// If nil, uses default equality checking.
	equal func(T, T) bool
}

// NewWritable creates a new store holding initial.
func NewWritable[T any](initial T) *Writable[T] {
	return &Writable[T]{
		id:    nextID(),
		value: initial,
	}
}

// ID returns the unique identifier for this store.
func (w *Writable[T]) ID() uint64 {
	return w.id
}

// Get returns the current value.
func (w *Writable[T]) Get() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value
}

// Set replaces the value and notifies subscribers if it changed.
func (w *Writable[T]) Set(value T) {
	w.mu.Lock()
	changed := !w.equals(w.value, value)
	if changed {
		w.value = value
	}
	w.mu.Unlock()

	if changed {
		w.notify(value)
	}
}

// Update atomically reads and replaces the value.
func (w *Writable[T]) Update(fn func(T) T) {
	w.mu.Lock()
	oldValue := w.value
	newValue := fn(oldValue)
	changed := !w.equals(oldValue, newValue)
	if changed {
		w.value = newValue
	}
	w.mu.Unlock()

	if changed {
		w.notify(newValue)
	}
}

// Subscribe registers fn and calls it immediately with the current value.
func (w *Writable[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	sub := subscriber[T]{id: nextID(), fn: fn}
	w.subMu.Lock()
	w.subs = append(w.subs, sub)
	w.subMu.Unlock()

	fn(w.Get())

	var once sync.Once
	return func() {
		once.Do(func() { w.unsubscribe(sub.id) })
	}
}

// SubscriberCount returns the number of active subscribers.
func (w *Writable[T]) SubscriberCount() int {
	w.subMu.RLock()
	defer w.subMu.RUnlock()
	return len(w.subs)
}

// WithEquals configures a custom equality function and returns w.
func (w *Writable[T]) WithEquals(fn func(T, T) bool) *Writable[T] {
	w.equal = fn
	return w
}

func (w *Writable[T]) unsubscribe(id uint64) {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	for i, existing := range w.subs {
		if existing.id == id {
			// Preserve order; subscribers run in registration order.
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			return
		}
	}
}

// notify calls every subscriber without holding any lock.
func (w *Writable[T]) notify(value T) {
	w.subMu.RLock()
	subs := make([]subscriber[T], len(w.subs))
	copy(subs, w.subs)
	w.subMu.RUnlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}

func (w *Writable[T]) equals(a, b T) bool {
	if w.equal != nil {
		return w.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals uses == for basic types and reflect.DeepEqual for others.
// The comma-ok assertions matter when T is an interface type.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case uint:
		bv, ok := any(b).(uint)
		return ok && av == bv
	case uint64:
		bv, ok := any(b).(uint64)
		return ok && av == bv
	case float32:
		bv, ok := any(b).(float32)
		return ok && av == bv
	case float64:
		bv, ok := any(b).(float64)
		return ok && av == bv
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}
