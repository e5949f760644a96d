// Package storage provides interchangeable persistence backends for a
// single JSON value per key.
//
// Every backend implements Storage. Backends that can report changes made
// elsewhere (another window, another process, or an asynchronous read
// completing) also implement SelfUpdateStorage:
//
//	s := storage.LocalStorage[Prefs](storage.ListenExternalChanges())
//	s.SetValue("prefs", Prefs{Theme: "dark"})
//
//	if su, ok := s.(storage.SelfUpdateStorage[Prefs]); ok {
//	    id := su.AddListener("prefs", func(p Prefs) { ... })
//	    defer su.RemoveListener("prefs", id)
//	}
//
// Backends never panic and never return errors. A backend whose platform
// primitive is missing degrades to a no-op and logs a P001 warning. Encode
// and decode problems are logged with codes P002 and P003, and stored text
// that is not JSON is returned as is when the value type is a string.
//
// Available backends:
//   - LocalStorage: the origin's local area (webstorage.Window)
//   - SessionStorage: the window's session area
//   - CookieStorage: document cookies (cookies.Document)
//   - DatabaseStorage: the embedded key-value database (kvdb.Store)
//   - NoopStorage, NoopSelfUpdateStorage: discard everything
package storage
