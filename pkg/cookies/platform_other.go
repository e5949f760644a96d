//go:build !(js && wasm)

package cookies

func platformDocument() Document {
	return nil
}
