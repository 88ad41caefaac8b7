package migrations

import "embed"

// FS contains embedded SQLite migrations for build library storage.
//
//go:embed *.sql
var FS embed.FS
