//go:build !(js && wasm)

package webstorage

// platformWindow reports that a non-browser process has no global window.
func platformWindow() Window {
	return nil
}
