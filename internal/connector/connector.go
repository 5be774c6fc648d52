// Package connector runs key/value shaped statements against a single
// database connection.
//
// A Connector holds one connection, the last prepared SQL text and its
// parameters. Terminal operations (Modify, Query, Select, MultiModify and the
// quick helpers built on them) release the connection when they finish unless
// a transaction is open; the next operation reopens it from the stored
// configuration. A Connector is not safe for concurrent use.
package connector

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibesql/connector/internal/database"
)

// Options tune a Connector. The zero value is usable.
type Options struct {
	// Logger receives statement diagnostics. Nil disables logging.
	Logger Logger

	// QueryTimeout bounds every statement. Zero means no limit beyond the
	// caller's context.
	QueryTimeout time.Duration

	// MaxRows bounds the rows Select will read. Zero means unlimited.
	MaxRows int
}

// Connector is a statement-execution helper over one database connection.
type Connector struct {
	config  database.Config
	dialect database.Dialect
	opts    Options
	logger  Logger

	conn *database.Connection
	tx   *sqlx.Tx

	query  string
	params Params
	batch  []Params

	lastInsertID int64
	hasInsertID  bool
}

// New validates cfg and opens the connection.
func New(ctx context.Context, cfg database.Config, opts Options) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Connector{
		config:  cfg,
		dialect: database.NewDialect(cfg.Driver),
		opts:    opts,
		logger:  opts.Logger,
	}
	if c.logger == nil {
		c.logger = NoOpLogger{}
	}

	if err := c.open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Dialect returns the SQL dialect of the configured driver.
func (c *Connector) Dialect() database.Dialect {
	return c.dialect
}

// IsOpen reports whether the connection is currently held.
func (c *Connector) IsOpen() bool {
	return c.conn != nil
}

// InTransaction reports whether a transaction is active.
func (c *Connector) InTransaction() bool {
	return c.tx != nil
}

// Destroy releases the connection. An open transaction is rolled back first.
// Calling Destroy on a released Connector is a no-op.
func (c *Connector) Destroy() error {
	var errs []error

	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, database.TranslateError(err))
		}
		c.tx = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, database.TranslateError(err))
		}
		c.conn = nil
	}

	return errors.Join(errs...)
}

// Prepare records the SQL text and its named parameters for the next
// operation. It never touches the database.
func (c *Connector) Prepare(query string, params Params) *Connector {
	c.query = query
	c.params = params
	c.batch = nil
	return c
}

// PrepareBatch records ;-separated statements for MultiModify. params[i] is
// bound to the i-th non-empty statement.
func (c *Connector) PrepareBatch(query string, params ...Params) *Connector {
	c.query = query
	c.params = nil
	c.batch = params
	return c
}

// SQL returns the prepared SQL text.
func (c *Connector) SQL() string {
	return c.query
}

// BeginTransaction starts a transaction on the connection. Statements run
// inside it until Commit or Rollback, and the connection is held meanwhile.
func (c *Connector) BeginTransaction(ctx context.Context) (*Connector, error) {
	if c.tx != nil {
		return c, database.NewError(database.ErrorCodeTransaction, "Transaction already active", "commit or roll back the current transaction first")
	}
	if err := c.open(ctx); err != nil {
		return c, err
	}

	tx, err := c.conn.DB().BeginTxx(ctx, nil)
	if err != nil {
		return c, c.fail(ctx, "BEGIN", err)
	}
	c.tx = tx

	c.logger.Info(ctx, "transaction started")
	return c, nil
}

// Commit commits the active transaction.
func (c *Connector) Commit() error {
	if c.tx == nil {
		return errNoTransaction()
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return c.fail(context.Background(), "COMMIT", err)
	}

	c.logger.Info(context.Background(), "transaction committed")
	return nil
}

// Rollback rolls back the active transaction.
func (c *Connector) Rollback() error {
	if c.tx == nil {
		return errNoTransaction()
	}
	err := c.tx.Rollback()
	c.tx = nil
	if err != nil {
		return c.fail(context.Background(), "ROLLBACK", err)
	}

	c.logger.Info(context.Background(), "transaction rolled back")
	return nil
}

func errNoTransaction() error {
	return database.NewError(database.ErrorCodeTransaction, "No active transaction", "")
}

// open (re)establishes the connection if it has been released.
func (c *Connector) open(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := database.NewConnection(ctx, c.config)
	if err != nil {
		translated := database.TranslateError(err)
		if translated.Code == database.ErrorCodeInternalError {
			translated = database.NewError(database.ErrorCodeDatabaseUnavailable, "Database is unavailable", err.Error())
		}
		c.logger.Error(ctx, "connection failed", "driver", c.config.Driver, "error", err)
		return translated
	}

	c.conn = conn
	c.logger.Info(ctx, "connection opened", "driver", c.config.Driver)
	return nil
}

// release gives the connection back after a terminal operation. It is held
// while a transaction is open.
func (c *Connector) release(ctx context.Context) {
	if c.tx != nil || c.conn == nil {
		return
	}
	if err := c.Destroy(); err != nil {
		c.logger.Error(ctx, "failed to release connection", "error", err)
		return
	}
	c.logger.Debug(ctx, "connection released")
}

// ready checks that a statement is prepared and the connection is open.
func (c *Connector) ready(ctx context.Context) error {
	if strings.TrimSpace(c.query) == "" {
		return database.NewError(database.ErrorCodeMissingRequiredField, "No statement prepared", "call Prepare before executing")
	}
	return c.open(ctx)
}

func (c *Connector) target() DBTX {
	if c.tx != nil {
		return c.tx
	}
	return c.conn.DB()
}

func (c *Connector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// bind compiles named parameters into the driver's placeholder style.
func (c *Connector) bind(query string, params Params) (string, []interface{}, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	compiled, args, err := sqlx.Named(escapeColons(c.dialect, query), normalizeParams(params))
	if err != nil {
		return "", nil, database.NewError(database.ErrorCodeInvalidInput, "Cannot bind parameters", err.Error())
	}

	return c.dialect.Rebind(compiled), args, nil
}

// fail translates err, logs it and returns the translated error.
func (c *Connector) fail(ctx context.Context, query string, err error) error {
	translated := database.TranslateError(err)
	c.logger.Error(ctx, "statement failed", "sql", query, "code", translated.Code, "error", err)
	return translated
}
