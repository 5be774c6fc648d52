package connector

import (
	"strings"

	"github.com/vibesql/connector/internal/database"
)

// rowReturningKeywords start statements whose row count has to be taken by
// reading the rows rather than from the driver's affected-rows figure.
var rowReturningKeywords = []string{
	"SELECT", "SHOW", "WITH", "VALUES", "PRAGMA", "DESCRIBE", "DESC", "EXPLAIN",
}

// countQuery rewrites a "SELECT * ..." style statement into the equivalent
// COUNT(*) query. Only the first " * " is replaced; ok is false when the
// statement has none.
func countQuery(sql string) (string, bool) {
	i := strings.Index(sql, " * ")
	if i < 0 {
		return sql, false
	}
	return sql[:i] + " COUNT(*) " + sql[i+3:], true
}

// returnsRows reports whether sql is a statement that produces a result set.
func returnsRows(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(removeComments(sql)))
	for _, kw := range rowReturningKeywords {
		if strings.HasPrefix(upper, kw) {
			rest := upper[len(kw):]
			if rest == "" || !isWordByte(rest[0]) {
				return true
			}
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// splitStatements splits sql on semicolons that are SQL code, not part of a
// literal, quoted identifier or comment. Statements with no code left after
// trimming are dropped.
func splitStatements(d database.Dialect, sql string) []string {
	var (
		stmts   []string
		current strings.Builder
		hasCode bool
	)

	flush := func() {
		if hasCode {
			stmts = append(stmts, strings.TrimSpace(current.String()))
		}
		current.Reset()
		hasCode = false
	}

	d.Walk(sql, func(part string, code bool) {
		if !code {
			current.WriteString(part)
			return
		}
		for {
			seg, rest, found := strings.Cut(part, ";")
			current.WriteString(seg)
			if strings.TrimSpace(seg) != "" {
				hasCode = true
			}
			if !found {
				return
			}
			flush()
			part = rest
		}
	})
	flush()

	return stmts
}

// escapeColons doubles every colon outside SQL code so named parameter
// compilation reads it as a literal colon.
func escapeColons(d database.Dialect, sql string) string {
	if !strings.Contains(sql, ":") {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) + 8)
	d.Walk(sql, func(part string, code bool) {
		if code {
			b.WriteString(part)
			return
		}
		b.WriteString(strings.ReplaceAll(part, ":", "::"))
	})
	return b.String()
}
