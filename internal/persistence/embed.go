package persistence

import "embed"

// MigrationFS embeds the goose schema migrations into the compiled binary.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
