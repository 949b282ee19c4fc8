package shared

import (
	"context"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/lokapos/lokapos/internal/platform/db"
)

// NextDocNumber hands out the next daily document number for a table, e.g.
// POS-20260821-0004. It must run inside a transaction; concurrent issuers
// serialize on an advisory lock keyed by the prefix, so a day's counter never
// hands the same number out twice.
func NextDocNumber(ctx context.Context, q db.Querier, prefix, table, dateColumn string, day time.Time) (string, error) {
	key := int64(crc32.ChecksumIEEE([]byte(prefix)))
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return "", fmt.Errorf("doc number lock %s: %w", prefix, err)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) + 1 FROM %s WHERE %s >= $1 AND %s < $2`, table, dateColumn, dateColumn)
	if err := q.QueryRow(ctx, query, start, start.AddDate(0, 0, 1)).Scan(&n); err != nil {
		return "", fmt.Errorf("doc number count %s: %w", prefix, err)
	}
	return FormatDocNumber(prefix, day, n), nil
}

// FormatDocNumber renders a document number from its parts.
func FormatDocNumber(prefix string, day time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), n)
}
