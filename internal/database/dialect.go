package database

import (
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect holds the bits of SQL that differ between the supported drivers.
// Catalog queries take a single named parameter, :table.
type Dialect struct {
	driver Driver
}

// NewDialect returns the dialect for driver. Unknown drivers fall back to MySQL.
func NewDialect(driver Driver) Dialect {
	switch driver {
	case DriverPostgres, DriverSQLite:
		return Dialect{driver: driver}
	default:
		return Dialect{driver: DriverMySQL}
	}
}

// Driver returns the driver this dialect belongs to.
func (d Dialect) Driver() Driver {
	return d.driver
}

// DriverName is the name registered with database/sql.
func (d Dialect) DriverName() string {
	return string(d.driver)
}

// BindType is the sqlx bind variable style for the driver.
func (d Dialect) BindType() int {
	if d.driver == DriverPostgres {
		return sqlx.DOLLAR
	}
	return sqlx.QUESTION
}

// Rebind converts a query written with ? placeholders into the driver's style.
// A ? inside a literal or comment is left alone.
func (d Dialect) Rebind(query string) string {
	if d.BindType() == sqlx.DOLLAR {
		return d.rebindDollar(query)
	}
	return query
}

// Quote quotes a single identifier.
func (d Dialect) Quote(ident string) string {
	if d.driver == DriverMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// TableExistsQuery returns one row per table named :table in the current schema.
func (d Dialect) TableExistsQuery() string {
	switch d.driver {
	case DriverPostgres:
		return `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = :table`
	case DriverSQLite:
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name = :table`
	default:
		return `SELECT table_name FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = :table`
	}
}

// PrimaryKeyQuery returns the primary key columns of :table in key order.
func (d Dialect) PrimaryKeyQuery() string {
	switch d.driver {
	case DriverPostgres:
		return `SELECT kcu.column_name FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = current_schema()
				AND tc.table_name = :table
			ORDER BY kcu.ordinal_position`
	case DriverSQLite:
		return `SELECT name FROM pragma_table_info(:table) WHERE pk > 0 ORDER BY pk`
	default:
		return `SELECT column_name FROM information_schema.key_column_usage
			WHERE table_schema = DATABASE()
				AND table_name = :table
				AND constraint_name = 'PRIMARY'
			ORDER BY ordinal_position`
	}
}

// LastInsertIDQuery returns the session's last generated id.
func (d Dialect) LastInsertIDQuery() string {
	switch d.driver {
	case DriverPostgres:
		return "SELECT lastval()"
	case DriverSQLite:
		return "SELECT last_insert_rowid()"
	default:
		return "SELECT LAST_INSERT_ID()"
	}
}

// MigrationDialect is the dialect name understood by sql-migrate.
func (d Dialect) MigrationDialect() string {
	if d.driver == DriverSQLite {
		return "sqlite3"
	}
	return string(d.driver)
}
