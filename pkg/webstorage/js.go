//go:build js && wasm

package webstorage

import (
	"fmt"
	"sort"
	"sync"
	"syscall/js"
)

// platformWindow returns the browser's global window, or nil when the
// program runs in a JS host without one (a worker, Node).
func platformWindow() Window {
	win := js.Global().Get("window")
	if win.IsUndefined() || win.IsNull() {
		return nil
	}
	return newJSWindow(win)
}

// jsWindow wraps the global window object.
type jsWindow struct {
	win     js.Value
	local   *jsArea
	session *jsArea

	listeners listenerSet

	mu      sync.Mutex
	handler js.Func
	bound   bool
}

func newJSWindow(win js.Value) *jsWindow {
	w := &jsWindow{win: win}
	if v, ok := lookupArea(win, "localStorage"); ok {
		w.local = &jsArea{v: v, name: AreaLocal}
	}
	if v, ok := lookupArea(win, "sessionStorage"); ok {
		w.session = &jsArea{v: v, name: AreaSession}
	}
	return w
}

// lookupArea reads window[name]; browsers throw SecurityError when storage
// is disabled, which syscall/js surfaces as a panic.
func lookupArea(win js.Value, name string) (v js.Value, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	v = win.Get(name)
	if v.IsUndefined() || v.IsNull() {
		return js.Value{}, false
	}
	return v, true
}

func (w *jsWindow) LocalStorage() Area {
	if w.local == nil {
		return nil
	}
	return w.local
}

func (w *jsWindow) SessionStorage() Area {
	if w.session == nil {
		return nil
	}
	return w.session
}

func (w *jsWindow) AddStorageListener(fn func(StorageEvent)) func() {
	if fn == nil {
		return func() {}
	}

	id, first := w.listeners.add(fn)
	if first {
		w.bind()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if w.listeners.remove(id) {
				w.unbind()
			}
		})
	}
}

func (w *jsWindow) bind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bound {
		return
	}
	w.handler = js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		w.listeners.dispatch(w.convert(args[0]))
		return nil
	})
	w.win.Call("addEventListener", "storage", w.handler)
	w.bound = true
}

func (w *jsWindow) unbind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.bound {
		return
	}
	w.win.Call("removeEventListener", "storage", w.handler)
	w.handler.Release()
	w.bound = false
}

func (w *jsWindow) convert(ev js.Value) StorageEvent {
	out := StorageEvent{
		URL:      ev.Get("url").String(),
		OldValue: optionalString(ev.Get("oldValue")),
		NewValue: optionalString(ev.Get("newValue")),
	}

	key := ev.Get("key")
	if key.IsNull() {
		out.Cleared = true
	} else {
		out.Key = key.String()
	}

	area := ev.Get("storageArea")
	switch {
	case w.local != nil && area.Equal(w.local.v):
		out.StorageArea, out.Area = w.local, AreaLocal
	case w.session != nil && area.Equal(w.session.v):
		out.StorageArea, out.Area = w.session, AreaSession
	}
	return out
}

func optionalString(v js.Value) *string {
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return stringPtr(v.String())
}

// jsArea wraps a Storage object (localStorage or sessionStorage).
type jsArea struct {
	v    js.Value
	name AreaName
}

func (a *jsArea) GetItem(key string) (string, bool) {
	r := a.v.Call("getItem", key)
	if r.IsNull() || r.IsUndefined() {
		return "", false
	}
	return r.String(), true
}

func (a *jsArea) SetItem(key, value string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok && jsErr.Get("name").String() == "QuotaExceededError" {
				err = ErrQuotaExceeded
				return
			}
			err = fmt.Errorf("webstorage: setItem: %v", r)
		}
	}()
	a.v.Call("setItem", key, value)
	return nil
}

func (a *jsArea) RemoveItem(key string) {
	a.v.Call("removeItem", key)
}

func (a *jsArea) Clear() {
	a.v.Call("clear")
}

func (a *jsArea) Keys() []string {
	n := a.v.Get("length").Int()
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k := a.v.Call("key", i)
		if !k.IsNull() {
			keys = append(keys, k.String())
		}
	}
	sort.Strings(keys)
	return keys
}
