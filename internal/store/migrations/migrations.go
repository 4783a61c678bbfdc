// Package migrations embeds the goose SQL migrations for the affinity store.
package migrations

import "embed"

// FS contains the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
