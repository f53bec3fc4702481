//go:build !sqlite_cgo

package storage

// Default build: pure Go SQLite, no C toolchain needed. FTS5 is compiled in.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by the build
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
