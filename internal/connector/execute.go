package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibesql/connector/internal/database"
)

// Modify executes the prepared statement and releases the connection.
func (c *Connector) Modify(ctx context.Context) (*ExecResult, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	defer c.release(ctx)

	return c.exec(ctx, c.query, c.params)
}

// Query returns the first column of the first row as text. The result is
// not Valid when the statement returned no rows or the value was NULL.
// The connection is released afterwards.
func (c *Connector) Query(ctx context.Context) (sql.NullString, error) {
	if err := c.ready(ctx); err != nil {
		return sql.NullString{}, err
	}
	defer c.release(ctx)

	return c.scalar(ctx, c.query, c.params)
}

// Select reads every row of the prepared statement and releases the
// connection.
func (c *Connector) Select(ctx context.Context) (*Result, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	defer c.release(ctx)

	start := time.Now()

	var rows []Row
	err := c.queryRows(ctx, c.query, c.params, func(r *sqlx.Rows) error {
		var err error
		rows, err = parseRows(r, c.opts.MaxRows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Rows:          rows,
		RowCount:      len(rows),
		ExecutionTime: time.Since(start),
	}, nil
}

// RowCount returns the number of rows the prepared statement matches or
// affects. A statement containing " * " is counted by running it with the
// projection replaced by COUNT(*); other row-returning statements are read
// and counted; anything else is executed and its affected rows returned.
// The prepared statement is left as it was and the connection is kept.
func (c *Connector) RowCount(ctx context.Context) (int64, error) {
	if err := c.ready(ctx); err != nil {
		return 0, err
	}

	if counted, ok := countQuery(c.query); ok {
		val, err := c.scalar(ctx, counted, c.params)
		if err != nil {
			return 0, err
		}
		return parseCount(val)
	}

	if returnsRows(c.query) {
		return c.countRows(ctx, c.query, c.params)
	}

	res, err := c.exec(ctx, c.query, c.params)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// LastInsertID returns the id generated by the most recent insert. The value
// reported by the driver for the last Modify is used when there is one;
// otherwise the session is asked, which on a reopened connection is 0.
func (c *Connector) LastInsertID(ctx context.Context) (int64, error) {
	if c.hasInsertID {
		return c.lastInsertID, nil
	}

	val, err := c.Prepare(c.dialect.LastInsertIDQuery(), nil).Query(ctx)
	if err != nil {
		return 0, err
	}
	return parseCount(val)
}

// MultiModify executes each ;-separated prepared statement in order and
// releases the connection. It returns how many statements were executed;
// execution stops at the first failure.
func (c *Connector) MultiModify(ctx context.Context) (int, error) {
	if err := c.ready(ctx); err != nil {
		return 0, err
	}
	defer c.release(ctx)

	stmts := splitStatements(c.dialect, c.query)
	executed := 0

	for i, stmt := range stmts {
		params := c.params
		if c.batch != nil {
			params = nil
			if i < len(c.batch) {
				params = c.batch[i]
			}
		}

		if _, err := c.exec(ctx, stmt, params); err != nil {
			return executed, err
		}
		executed++
	}

	c.logger.Debug(ctx, "batch executed", "statements", len(stmts), "executed", executed)
	return executed, nil
}

// exec prepares and executes one statement that does not return rows.
func (c *Connector) exec(ctx context.Context, query string, params Params) (*ExecResult, error) {
	start := time.Now()

	bound, args, err := c.bind(query, params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, err := c.target().PreparexContext(ctx, bound)
	if err != nil {
		return nil, c.fail(ctx, bound, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, c.fail(ctx, bound, err)
	}

	out := &ExecResult{ExecutionTime: time.Since(start)}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		out.LastInsertID = id
		c.lastInsertID = id
		c.hasInsertID = true
	}

	c.logger.Debug(ctx, "statement executed",
		"sql", bound,
		"params", len(args),
		"rows_affected", out.RowsAffected,
		"duration", out.ExecutionTime)

	return out, nil
}

// queryRows prepares and runs a row-returning statement and hands the rows
// to fn. The rows are closed afterwards.
func (c *Connector) queryRows(ctx context.Context, query string, params Params, fn func(*sqlx.Rows) error) error {
	start := time.Now()

	bound, args, err := c.bind(query, params)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stmt, err := c.target().PreparexContext(ctx, bound)
	if err != nil {
		return c.fail(ctx, bound, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryxContext(ctx, args...)
	if err != nil {
		return c.fail(ctx, bound, err)
	}
	defer rows.Close()

	if err := fn(rows); err != nil {
		return c.fail(ctx, bound, err)
	}

	c.logger.Debug(ctx, "query executed",
		"sql", bound,
		"params", len(args),
		"duration", time.Since(start))

	return nil
}

// scalar returns the first column of the first row.
func (c *Connector) scalar(ctx context.Context, query string, params Params) (sql.NullString, error) {
	var out sql.NullString

	err := c.queryRows(ctx, query, params, func(r *sqlx.Rows) error {
		if r.Next() {
			vals, err := r.SliceScan()
			if err != nil {
				return err
			}
			if len(vals) > 0 {
				out.String, out.Valid = stringify(vals[0])
			}
		}
		return r.Err()
	})

	return out, err
}

// countRows reads a result set and returns how many rows it had.
func (c *Connector) countRows(ctx context.Context, query string, params Params) (int64, error) {
	var n int64

	err := c.queryRows(ctx, query, params, func(r *sqlx.Rows) error {
		for r.Next() {
			n++
		}
		return r.Err()
	})

	return n, err
}

func parseCount(val sql.NullString) (int64, error) {
	if !val.Valid {
		return 0, nil
	}
	n, err := strconv.ParseInt(val.String, 10, 64)
	if err != nil {
		return 0, database.NewError(database.ErrorCodeInternalError, "Unexpected non-numeric value", fmt.Sprintf("%q is not an integer", val.String))
	}
	return n, nil
}
