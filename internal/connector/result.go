package connector

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibesql/connector/internal/database"
)

// Params are named statement parameters. Keys may carry the leading colon
// used in the SQL text (":id") or omit it ("id").
type Params map[string]interface{}

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Result holds the rows returned by Select.
type Result struct {
	Rows          []Row
	RowCount      int
	ExecutionTime time.Duration
}

// ExecResult describes a statement that does not return rows.
type ExecResult struct {
	RowsAffected  int64
	LastInsertID  int64
	ExecutionTime time.Duration
}

// One returns the only row of the result, or nil when the result holds zero
// or several rows.
func (r *Result) One() Row {
	if r == nil || len(r.Rows) != 1 {
		return nil
	}
	return r.Rows[0]
}

// Shape returns the rows the way callers of the key/value API expect them:
// with multi set, always the full list; otherwise the list when there is more
// than one row, the row itself when there is exactly one, and an empty row
// when there are none.
func (r *Result) Shape(multi bool) interface{} {
	rows := []Row{}
	if r != nil && r.Rows != nil {
		rows = r.Rows
	}

	if multi || len(rows) > 1 {
		return rows
	}
	if len(rows) == 1 {
		return rows[0]
	}
	return Row{}
}

// parseRows drains rows into Row maps, enforcing maxRows.
func parseRows(rows *sqlx.Rows, maxRows int) ([]Row, error) {
	var results []Row

	for rows.Next() {
		if err := CheckRowLimit(len(results), maxRows); err != nil {
			return nil, err
		}

		values := make(map[string]interface{})
		if err := rows.MapScan(values); err != nil {
			return nil, database.TranslateError(err)
		}

		row := make(Row, len(values))
		for col, val := range values {
			row[col] = normalizeValue(val)
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, database.TranslateError(err)
	}

	return results, nil
}

// normalizeValue turns driver byte slices into strings so rows encode as text.
func normalizeValue(val interface{}) interface{} {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

// stringify renders a scanned column value the way a text protocol would.
func stringify(val interface{}) (string, bool) {
	switch v := val.(type) {
	case nil:
		return "", false
	case []byte:
		return string(v), true
	case string:
		return v, true
	case time.Time:
		return v.Format(time.RFC3339Nano), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	default:
		return fmt.Sprint(v), true
	}
}

// normalizeParams strips the optional leading colon from parameter names.
func normalizeParams(params Params) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for name, val := range params {
		out[strings.TrimPrefix(name, ":")] = val
	}
	return out
}
