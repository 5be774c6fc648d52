// Package migrate applies schema migrations to the connector's database
// using rubenv/sql-migrate.
//
// MySQL cannot roll back DDL, so a failure after migrations have started may
// leave the schema half applied.
package migrate

import (
	"fmt"
	"log"
	"time"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/vibesql/connector/internal/database"
)

const (
	// DefaultDir is where migration files are looked up when none is given
	DefaultDir = "migrations"

	// DefaultTable records applied migrations
	DefaultTable = "connector_migrations"
)

// Direction selects whether migrations are applied or rolled back.
type Direction = migrate.MigrationDirection

const (
	Up   = migrate.Up
	Down = migrate.Down
)

// PlannedMigration is one migration that would run, with its statements.
type PlannedMigration struct {
	ID      string
	Queries []string
}

// Record is one applied migration.
type Record struct {
	ID        string
	AppliedAt time.Time
}

// Migrator runs migrations from a source against one connection.
type Migrator struct {
	conn    *database.Connection
	source  migrate.MigrationSource
	set     migrate.MigrationSet
	dialect string
}

// New returns a Migrator for source. An empty table uses DefaultTable.
func New(conn *database.Connection, source migrate.MigrationSource, table string) *Migrator {
	if table == "" {
		table = DefaultTable
	}
	return &Migrator{
		conn:    conn,
		source:  source,
		set:     migrate.MigrationSet{TableName: table},
		dialect: conn.Dialect().MigrationDialect(),
	}
}

// NewFromDir returns a Migrator reading *.sql files from dir.
func NewFromDir(conn *database.Connection, dir, table string) *Migrator {
	if dir == "" {
		dir = DefaultDir
	}
	return New(conn, migrate.FileMigrationSource{Dir: dir}, table)
}

// Up applies at most limit pending migrations. A limit of 0 applies all.
func (m *Migrator) Up(limit int) (int, error) {
	return m.exec(Up, limit)
}

// Down rolls back at most limit applied migrations. A limit of 0 rolls back
// all of them.
func (m *Migrator) Down(limit int) (int, error) {
	return m.exec(Down, limit)
}

func (m *Migrator) exec(dir Direction, limit int) (int, error) {
	applied, err := m.set.ExecMax(m.conn.DB().DB, m.dialect, m.source, dir, limit)
	if err != nil {
		return applied, fmt.Errorf("migration failed (applied %d migrations): %w", applied, err)
	}

	log.Printf("[INFO] Applied %d migrations %s", applied, directionName(dir))
	return applied, nil
}

// Plan lists the migrations Up or Down would run without running them.
func (m *Migrator) Plan(dir Direction, limit int) ([]PlannedMigration, error) {
	planned, _, err := m.set.PlanMigration(m.conn.DB().DB, m.dialect, m.source, dir, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to plan migrations: %w", err)
	}

	out := make([]PlannedMigration, len(planned))
	for i, p := range planned {
		out[i] = PlannedMigration{ID: p.Id, Queries: p.Queries}
	}
	return out, nil
}

// Status returns the migrations recorded as applied, oldest first.
func (m *Migrator) Status() ([]Record, error) {
	records, err := m.set.GetMigrationRecords(m.conn.DB().DB, m.dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration records: %w", err)
	}

	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{ID: r.Id, AppliedAt: r.AppliedAt}
	}
	return out, nil
}

func directionName(dir Direction) string {
	if dir == Down {
		return "down"
	}
	return "up"
}
