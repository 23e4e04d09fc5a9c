//go:build !cgo_sqlite

package main

import (
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const (
	driverName = "sqlite"
	driverType = "purego"
)

// busyTimeoutParam returns the DSN query parameter setting the busy timeout.
func busyTimeoutParam(ms int) (string, string) {
	return "_pragma", fmt.Sprintf("busy_timeout(%d)", ms)
}
