package connector

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vibesql/connector/internal/database"
)

// TableExists reports whether table exists in the current schema. The
// prepared statement is not touched.
func (c *Connector) TableExists(ctx context.Context, table string) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	if err := c.open(ctx); err != nil {
		return false, err
	}

	n, err := c.countRows(ctx, c.dialect.TableExistsQuery(), Params{"table": table})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PrimaryKey returns the single primary key column of table.
func (c *Connector) PrimaryKey(ctx context.Context, table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}
	if err := c.open(ctx); err != nil {
		return "", err
	}

	var columns []string
	err := c.queryRows(ctx, c.dialect.PrimaryKeyQuery(), Params{"table": table}, func(r *sqlx.Rows) error {
		for r.Next() {
			vals, err := r.SliceScan()
			if err != nil {
				return err
			}
			if name, ok := stringify(vals[0]); ok {
				columns = append(columns, name)
			}
		}
		return r.Err()
	})
	if err != nil {
		return "", err
	}

	switch len(columns) {
	case 0:
		return "", database.NewError(
			database.ErrorCodePrimaryKeyNotFound,
			fmt.Sprintf("Table '%s' has no primary key.", table),
			"",
		)
	case 1:
		return columns[0], nil
	default:
		return "", database.NewError(
			database.ErrorCodePrimaryKeyNotFound,
			fmt.Sprintf("Table '%s' has a composite primary key.", table),
			fmt.Sprintf("key columns: %v", columns),
		)
	}
}

// Delete removes the row of table whose primary key equals id.
func (c *Connector) Delete(ctx context.Context, table string, id int64) (*ExecResult, error) {
	key, err := c.lookupKey(ctx, table)
	if err != nil {
		c.release(ctx)
		return nil, err
	}

	stmt, err := BuildDelete(c.dialect, table, key, id)
	if err != nil {
		c.release(ctx)
		return nil, err
	}

	return c.Prepare(stmt.SQL, stmt.Params).Modify(ctx)
}

// QuickInsert inserts one row built from column/value pairs.
func (c *Connector) QuickInsert(ctx context.Context, table string, values Params) (*ExecResult, error) {
	if err := c.requireTable(ctx, table); err != nil {
		c.release(ctx)
		return nil, err
	}

	stmt, err := BuildInsert(c.dialect, table, values)
	if err != nil {
		c.release(ctx)
		return nil, err
	}

	return c.Prepare(stmt.SQL, stmt.Params).Modify(ctx)
}

// QuickUpdate sets column/value pairs on the row of table whose primary key
// equals id.
func (c *Connector) QuickUpdate(ctx context.Context, table string, id int64, values Params) (*ExecResult, error) {
	key, err := c.lookupKey(ctx, table)
	if err != nil {
		c.release(ctx)
		return nil, err
	}

	stmt, err := BuildUpdate(c.dialect, table, key, id, values)
	if err != nil {
		c.release(ctx)
		return nil, err
	}

	return c.Prepare(stmt.SQL, stmt.Params).Modify(ctx)
}

// BulkInsert inserts all rows with a single multi-row INSERT.
func (c *Connector) BulkInsert(ctx context.Context, table string, rows []Params) (*ExecResult, error) {
	if err := c.requireTable(ctx, table); err != nil {
		c.release(ctx)
		return nil, err
	}

	stmt, err := BuildBulkInsert(c.dialect, table, rows)
	if err != nil {
		c.release(ctx)
		return nil, err
	}

	return c.Prepare(stmt.SQL, stmt.Params).Modify(ctx)
}

func (c *Connector) requireTable(ctx context.Context, table string) error {
	exists, err := c.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		c.logger.Error(ctx, "table not found", "table", table)
		return database.NewTableNotFoundError(table)
	}
	return nil
}

func (c *Connector) lookupKey(ctx context.Context, table string) (string, error) {
	if err := c.requireTable(ctx, table); err != nil {
		return "", err
	}
	return c.PrimaryKey(ctx, table)
}
