package connector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vibesql/connector/internal/database"
)

// keyParam names the bound primary key value in generated UPDATE and DELETE
// statements.
const keyParam = "_key"

// Statement is generated SQL together with the parameters it binds.
type Statement struct {
	SQL    string
	Params Params
}

// BuildInsert generates a single row INSERT binding each value as :column.
func BuildInsert(d database.Dialect, table string, values Params) (Statement, error) {
	columns, err := sortedColumns(table, values)
	if err != nil {
		return Statement{}, err
	}

	params := make(Params, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = ":" + col
		params[col] = values[col]
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), quoteAll(d, columns), strings.Join(placeholders, ", "))

	return Statement{SQL: sql, Params: params}, nil
}

// BuildUpdate generates an UPDATE of one row identified by key = id.
func BuildUpdate(d database.Dialect, table, key string, id interface{}, values Params) (Statement, error) {
	columns, err := sortedColumns(table, values)
	if err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifier(key); err != nil {
		return Statement{}, err
	}

	params := make(Params, len(columns)+1)
	assignments := make([]string, len(columns))
	for i, col := range columns {
		if col == keyParam {
			return Statement{}, database.NewError(database.ErrorCodeInvalidInput, "Invalid column", fmt.Sprintf("column name %q is reserved", keyParam))
		}
		assignments[i] = fmt.Sprintf("%s = :%s", d.Quote(col), col)
		params[col] = values[col]
	}
	params[keyParam] = id

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s",
		d.Quote(table), strings.Join(assignments, ", "), d.Quote(key), keyParam)

	return Statement{SQL: sql, Params: params}, nil
}

// BuildBulkInsert generates one multi-row INSERT. Row i binds its values as
// :column_i. Every row must have the same columns as the first.
func BuildBulkInsert(d database.Dialect, table string, rows []Params) (Statement, error) {
	if len(rows) == 0 {
		return Statement{}, database.NewError(database.ErrorCodeInvalidInput, "No rows to insert", "bulk insert requires at least one row")
	}

	columns, err := sortedColumns(table, rows[0])
	if err != nil {
		return Statement{}, err
	}

	params := make(Params, len(columns)*len(rows))
	tuples := make([]string, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return Statement{}, columnMismatch(i)
		}
		placeholders := make([]string, len(columns))
		for j, col := range columns {
			val, ok := row[col]
			if !ok {
				return Statement{}, columnMismatch(i)
			}
			name := fmt.Sprintf("%s_%d", col, i)
			placeholders[j] = ":" + name
			params[name] = val
		}
		tuples[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.Quote(table), quoteAll(d, columns), strings.Join(tuples, ", "))

	return Statement{SQL: sql, Params: params}, nil
}

// BuildDelete generates a DELETE of one row identified by key = id.
func BuildDelete(d database.Dialect, table, key string, id interface{}) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if err := ValidateIdentifier(key); err != nil {
		return Statement{}, err
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = :%s", d.Quote(table), d.Quote(key), keyParam)

	return Statement{SQL: sql, Params: Params{keyParam: id}}, nil
}

// sortedColumns validates the table and column names and returns the columns
// in a stable order.
func sortedColumns(table string, values Params) ([]string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, database.NewError(database.ErrorCodeInvalidInput, "No values given", "at least one column value is required")
	}

	columns := make([]string, 0, len(values))
	for col := range values {
		if err := ValidateIdentifier(col); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	return columns, nil
}

func quoteAll(d database.Dialect, idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = d.Quote(ident)
	}
	return strings.Join(quoted, ", ")
}

func columnMismatch(row int) error {
	return database.NewError(
		database.ErrorCodeInvalidInput,
		"Column mismatch",
		fmt.Sprintf("row %d does not have the same columns as row 0", row),
	)
}
