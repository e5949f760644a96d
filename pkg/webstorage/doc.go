// Package webstorage provides the key-value storage areas that back the
// local and session storage adapters, together with the storage event that
// tells one browsing context about writes made by another.
//
// Three platforms implement the same Window interface:
//
//   - In a browser (GOOS=js, GOARCH=wasm), Default returns the global
//     window: its localStorage, its sessionStorage and its "storage" event.
//   - NewOrigin models an origin in memory. Every window opened on it shares
//     one local area; each top-level window owns a session area shared with
//     its frames. A write through one window raises a StorageEvent in every
//     other window that sees the same area, never in the writer.
//   - OpenFileWindow keeps the local area in <dir>/local.json and watches
//     the file with fsnotify, so writes by other processes surface as
//     storage events.
//
// Example:
//
//	origin := webstorage.NewOrigin("https://example.com")
//	a, b := origin.OpenWindow(), origin.OpenWindow()
//	remove := b.AddStorageListener(func(ev webstorage.StorageEvent) {
//	    fmt.Println(ev.Key, *ev.NewValue)
//	})
//	defer remove()
//	_ = a.LocalStorage().SetItem("theme", `"dark"`) // b prints: theme "dark"
package webstorage
