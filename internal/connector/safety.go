package connector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vibesql/connector/internal/database"
)

var (
	whereClausePattern = regexp.MustCompile(`\bWHERE\b`)
	singleLineComment  = regexp.MustCompile(`--[^\n]*`)
	multiLineComment   = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	stringLiteral      = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// CheckSafety rejects UPDATE and DELETE statements without a WHERE clause.
// Every ;-separated statement is checked.
func CheckSafety(sql string) error {
	cleaned := removeStringLiterals(removeComments(sql))

	for _, stmt := range strings.Split(cleaned, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		upper := strings.ToUpper(stmt)

		for _, kind := range []string{"UPDATE", "DELETE"} {
			if strings.HasPrefix(upper, kind) && !whereClausePattern.MatchString(upper) {
				return database.NewError(
					database.ErrorCodeUnsafeQuery,
					fmt.Sprintf("Unsafe query: %s without WHERE clause", kind),
					fmt.Sprintf("%s queries must include a WHERE clause. Use 'WHERE 1=1' to affect all rows explicitly", kind),
				)
			}
		}
	}

	return nil
}

// removeComments removes SQL comments from the query.
// Nested /* */ comments are not supported.
func removeComments(sql string) string {
	sql = singleLineComment.ReplaceAllString(sql, "")
	return multiLineComment.ReplaceAllString(sql, "")
}

// removeStringLiterals blanks out single quoted literals, including ones
// with doubled quotes like 'can''t'
func removeStringLiterals(sql string) string {
	return stringLiteral.ReplaceAllString(sql, "''")
}
