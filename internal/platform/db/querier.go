package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
// Repositories that must run either standalone or inside a caller's
// transaction are written against this interface.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// Source yields the pool a request should talk to. The tenancy manager
// implements it by routing on the tenant bound to the context; Static
// wraps a fixed pool for single-database callers and tests.
type Source interface {
	Pool(ctx context.Context) *pgxpool.Pool
}

// Static adapts a fixed pool into a Source.
func Static(pool *pgxpool.Pool) Source {
	return staticSource{pool: pool}
}

type staticSource struct {
	pool *pgxpool.Pool
}

func (s staticSource) Pool(context.Context) *pgxpool.Pool {
	return s.pool
}
