//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1

package main

import (
	"strconv"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)

// busyTimeoutParam returns the DSN query parameter setting the busy timeout.
func busyTimeoutParam(ms int) (string, string) {
	return "_busy_timeout", strconv.Itoa(ms)
}
