package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/textstat/internal/config"
	"github.com/xxxsen/textstat/internal/db"
)

// OpenSQLite returns a migrated catalog backed by a temporary sqlite file.
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// OpenPostgres connects to TEST_DB_DSN and skips the test when it is unset.
func OpenPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{Driver: "postgres", DSN: dsn})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec("DELETE FROM analysis_results")
		_, _ = conn.Exec("DELETE FROM files")
		_ = conn.Close()
	})
	return conn
}
