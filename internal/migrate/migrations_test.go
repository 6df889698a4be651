package migrate_test

import (
	"testing"

	"atelier/internal/db"
	"atelier/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("expected at least one applied step, got version %d", v)
	}

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	after, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version after rerun: %v", err)
	}
	if after != v {
		t.Fatalf("rerun moved version %d -> %d", v, after)
	}

	var n int
	if err := conn.QueryRow(`SELECT count(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if n != after {
		t.Fatalf("ledger has %d rows for version %d", n, after)
	}
}
