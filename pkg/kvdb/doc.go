// Package kvdb is an embedded key-value database modelled on the browser's
// per-origin object database.
//
// A database is a single SQLite file holding one table per object store.
// A Store is opened lazily on its first transaction, and the open step
// creates the object store when it does not exist yet:
//
//	db := kvdb.NewStore("persist", "persist", kvdb.WithDir(dir))
//	defer db.Close()
//
//	db.Put(ctx, "theme", []byte(`"dark"`))
//	v, ok, err := db.Get(ctx, "theme").Wait(ctx)
//
// Transactions never block the caller. Each Store runs them on a single
// worker goroutine in the order they were issued, so a Get issued after a
// Put observes the written value. Every operation returns a Result that can
// be waited on or given a completion callback.
//
// The SQLite driver is pure Go and is linked into every build except
// GOOS=js, where Available reports false and every transaction fails with
// ErrUnavailable.
package kvdb
