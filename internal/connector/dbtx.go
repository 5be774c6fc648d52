package connector

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// DBTX is what statements are prepared against: the connection itself, or
// the open transaction when one is active.
type DBTX interface {
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

var (
	_ DBTX = (*sqlx.DB)(nil)
	_ DBTX = (*sqlx.Tx)(nil)
)
