package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations, one
// directory per driver. Used by the migrate runner (cmd/migrate) and by tests.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS
