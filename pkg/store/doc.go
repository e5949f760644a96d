// Package store provides a minimal reactive value container.
//
// A Writable holds one value and notifies subscribers whenever the value
// changes. Subscribe invokes the callback immediately with the current value
// and then on every change, which is the contract package persist consumes:
//
//	theme := store.NewWritable("light")
//	unsubscribe := theme.Subscribe(func(v string) {
//	    fmt.Println("theme is", v)
//	})
//	theme.Set("dark")
//	unsubscribe()
//
// Setting a value equal to the current one does not notify. Equality uses
// == for basic types and reflect.DeepEqual otherwise; WithEquals overrides it.
package store
