package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// One handle, reused for the life of the Connection and never shared.
const (
	maxOpenConnections = 1
	maxIdleConnections = 1
	connMaxLifetime    = 1 * time.Hour
	connMaxIdleTime    = 10 * time.Minute
)

// Connection represents a single open database handle
type Connection struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewConnection opens a handle for cfg and verifies it with a ping
func NewConnection(ctx context.Context, cfg Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialect := NewDialect(cfg.Driver)

	db, err := sqlx.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db, dialect: dialect}, nil
}

// DB returns the underlying handle
func (c *Connection) DB() *sqlx.DB {
	return c.db
}

// Dialect returns the SQL dialect of the connection's driver
func (c *Connection) Dialect() Dialect {
	return c.dialect
}

// Close closes the handle
func (c *Connection) Close() error {
	if c != nil && c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the connection is still alive
func (c *Connection) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return c.db.PingContext(ctx)
}
