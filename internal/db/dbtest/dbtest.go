// Package dbtest opens migrated SQLite databases for repository tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db"
	"github.com/reinhardbuyabo/portfolio-optimization-system-sub000/internal/db/migrate"
)

// OpenSQLite creates a fresh SQLite file under t.TempDir, applies all migrations and
// returns the connection with a matching statement builder. The connection is closed on cleanup.
func OpenSQLite(t testing.TB) (*sql.DB, sq.StatementBuilderType) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	if err := migrate.Run(db.DriverSQLite, path, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, db.StatementBuilder(db.DriverSQLite)
}
