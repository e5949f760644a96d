//go:build js && wasm

package cookies

import (
	"fmt"
	"syscall/js"
)

// platformDocument returns document.cookie when the page has a document
// whose cookie property is a string.
func platformDocument() Document {
	doc := js.Global().Get("document")
	if doc.IsUndefined() || doc.IsNull() {
		return nil
	}
	if doc.Get("cookie").Type() != js.TypeString {
		return nil
	}
	return jsDocument{doc: doc}
}

type jsDocument struct {
	doc js.Value
}

func (d jsDocument) Cookie() string {
	return d.doc.Get("cookie").String()
}

func (d jsDocument) SetCookie(line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cookies: setting document.cookie: %v", r)
		}
	}()
	d.doc.Set("cookie", line)
	return nil
}
