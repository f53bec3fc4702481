//go:build sqlite_cgo

package storage

// cgo build using github.com/mattn/go-sqlite3. FTS5 must be enabled with
// the driver's own build tag:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo sqlite_fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by the build
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
