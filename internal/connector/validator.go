package connector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vibesql/connector/internal/database"
)

const (
	// MaxQuerySize is the maximum allowed SQL query length (64KB)
	MaxQuerySize = 64 * 1024

	maxIdentifierLength = 64
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "REPLACE", "WITH",
	"SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA", "VALUES",
	"CREATE", "DROP", "ALTER", "TRUNCATE",
}

// ValidateQuery validates a SQL query for basic requirements
func ValidateQuery(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return database.NewError(
			database.ErrorCodeMissingRequiredField,
			"Missing required field",
			"The 'sql' field is required and cannot be empty",
		)
	}

	if len(sql) > MaxQuerySize {
		return database.NewError(
			database.ErrorCodeQueryTooLarge,
			"Query too large",
			fmt.Sprintf("SQL query exceeds the maximum allowed size of %d bytes", MaxQuerySize),
		)
	}

	// Detailed syntax validation is left to the database server.
	upperSQL := strings.ToUpper(strings.TrimSpace(removeComments(trimmed)))
	for _, keyword := range validKeywords {
		if strings.HasPrefix(upperSQL, keyword) {
			return nil
		}
	}

	return database.NewError(
		database.ErrorCodeInvalidSQL,
		"Invalid SQL syntax",
		"Query must start with a valid SQL keyword ("+strings.Join(validKeywords, ", ")+")",
	)
}

// ValidateIdentifier checks a table or column name before it is spliced into SQL.
func ValidateIdentifier(name string) error {
	if name == "" {
		return database.NewError(
			database.ErrorCodeInvalidInput,
			"Invalid identifier",
			"identifier cannot be empty",
		)
	}

	if len(name) > maxIdentifierLength || !identifierPattern.MatchString(name) {
		return database.NewError(
			database.ErrorCodeInvalidInput,
			"Invalid identifier",
			fmt.Sprintf("%q must start with a letter or underscore and contain only letters, digits or '_' (max %d characters)", name, maxIdentifierLength),
		)
	}

	return nil
}
