//go:build !js

package kvdb

import (
	_ "modernc.org/sqlite" // SQLite driver
)
