package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a named DDL step. Names are recorded in schema_migrations
// so a step runs at most once per database.
type Migration struct {
	Name string
	SQL  string
}

// migrateLockKey serializes concurrent Sync calls against one database.
const migrateLockKey int64 = 0x6c6f6b61706f73

// Sync brings a database up to date by applying every migration that has
// not been recorded yet, in order. It is safe to call on every startup and
// from concurrent provisioners; an advisory lock serializes appliers.
func Sync(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("platform/db: ensure schema_migrations: %w", err)
	}

	return WithTxOptions(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrateLockKey); err != nil {
			return fmt.Errorf("platform/db: advisory lock: %w", err)
		}

		applied := make(map[string]bool)
		rows, err := tx.Query(ctx, `SELECT name FROM schema_migrations`)
		if err != nil {
			return fmt.Errorf("platform/db: list migrations: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fmt.Errorf("platform/db: scan migration: %w", err)
			}
			applied[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("platform/db: list migrations: %w", err)
		}

		for _, m := range migrations {
			if applied[m.Name] {
				continue
			}
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("platform/db: apply %s: %w", m.Name, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name); err != nil {
				return fmt.Errorf("platform/db: record %s: %w", m.Name, err)
			}
		}
		return nil
	})
}
