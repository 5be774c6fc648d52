package connector

import (
	"fmt"

	"github.com/vibesql/connector/internal/database"
)

// CheckRowLimit fails once currentRowCount reaches maxRows. A maxRows of zero
// or less disables the limit.
func CheckRowLimit(currentRowCount, maxRows int) error {
	if maxRows > 0 && currentRowCount >= maxRows {
		return database.NewError(
			database.ErrorCodeResultTooLarge,
			"Result set too large",
			fmt.Sprintf("Query returned more than the maximum allowed %d rows", maxRows),
		)
	}
	return nil
}
