package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/vibesql/connector/internal/database"
)

func setupConnection(t *testing.T) *database.Connection {
	t.Helper()

	cfg := database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "migrate.db"),
	}
	conn, err := database.NewConnection(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func memorySource() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id:   "1_users.sql",
				Up:   []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"},
				Down: []string{"DROP TABLE users"},
			},
			{
				Id:   "2_tags.sql",
				Up:   []string{"CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT)"},
				Down: []string{"DROP TABLE tags"},
			},
		},
	}
}

func tableExists(t *testing.T, conn *database.Connection, table string) bool {
	t.Helper()

	var n int
	err := conn.DB().Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		t.Fatalf("failed to look up table %s: %v", table, err)
	}
	return n > 0
}

func TestMigrator_UpAndDown(t *testing.T) {
	conn := setupConnection(t)
	m := New(conn, memorySource(), "")

	applied, err := m.Up(0)
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if applied != 2 {
		t.Errorf("Expected 2 migrations applied, got %d", applied)
	}
	if !tableExists(t, conn, "users") || !tableExists(t, conn, "tags") {
		t.Fatal("expected both tables after migrating up")
	}
	if !tableExists(t, conn, DefaultTable) {
		t.Errorf("expected migration records in %s", DefaultTable)
	}

	records, err := m.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "1_users.sql" || records[1].ID != "2_tags.sql" {
		t.Errorf("unexpected records: %+v", records)
	}

	applied, err = m.Up(0)
	if err != nil {
		t.Fatalf("second Up failed: %v", err)
	}
	if applied != 0 {
		t.Errorf("Expected nothing left to apply, got %d", applied)
	}

	rolledBack, err := m.Down(1)
	if err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if rolledBack != 1 {
		t.Errorf("Expected 1 migration rolled back, got %d", rolledBack)
	}
	if tableExists(t, conn, "tags") {
		t.Error("tags should be dropped after rolling back one migration")
	}
	if !tableExists(t, conn, "users") {
		t.Error("users should survive rolling back one migration")
	}
}

func TestMigrator_Plan(t *testing.T) {
	conn := setupConnection(t)
	m := New(conn, memorySource(), "schema_history")

	planned, err := m.Plan(Up, 1)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(planned) != 1 {
		t.Fatalf("Expected 1 planned migration, got %d", len(planned))
	}
	if planned[0].ID != "1_users.sql" {
		t.Errorf("Expected 1_users.sql first, got %s", planned[0].ID)
	}
	if len(planned[0].Queries) != 1 {
		t.Errorf("Expected 1 query, got %v", planned[0].Queries)
	}

	if tableExists(t, conn, "users") {
		t.Error("Plan must not apply migrations")
	}
}

func TestMigrator_FromDir(t *testing.T) {
	dir := t.TempDir()
	content := "-- +migrate Up\nCREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);\n\n-- +migrate Down\nDROP TABLE notes;\n"
	if err := os.WriteFile(filepath.Join(dir, "1_notes.sql"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write migration: %v", err)
	}

	conn := setupConnection(t)
	m := NewFromDir(conn, dir, "")

	applied, err := m.Up(0)
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if applied != 1 || !tableExists(t, conn, "notes") {
		t.Errorf("Expected notes table from file migration, applied %d", applied)
	}

	if _, err := m.Down(0); err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if tableExists(t, conn, "notes") {
		t.Error("notes should be dropped after Down")
	}
}

func TestMigrator_BadMigration(t *testing.T) {
	conn := setupConnection(t)
	source := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{Id: "1_ok.sql", Up: []string{"CREATE TABLE ok (id INTEGER)"}},
			{Id: "2_broken.sql", Up: []string{"CREATE TABLEE broken"}},
		},
	}

	applied, err := New(conn, source, "").Up(0)
	if err == nil {
		t.Fatal("Expected error from broken migration")
	}
	if applied != 1 {
		t.Errorf("Expected 1 migration applied before the failure, got %d", applied)
	}
}

func TestMigrator_MissingDir(t *testing.T) {
	conn := setupConnection(t)

	if _, err := NewFromDir(conn, filepath.Join(t.TempDir(), "absent"), "").Up(0); err == nil {
		t.Error("Expected error for missing migrations directory")
	}
}
