package db

import (
	"fmt"
	"net/url"
	"strings"
)

// WithDatabase returns dsn rewritten to point at the given database.
// Both URL DSNs (postgres://...) and keyword/value DSNs (host=... dbname=...)
// are supported, matching what pgx itself accepts.
func WithDatabase(dsn, database string) (string, error) {
	if database == "" {
		return "", fmt.Errorf("platform/db: empty database name")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("platform/db: parse dsn: %w", err)
		}
		u.Path = "/" + database
		return u.String(), nil
	}

	fields := strings.Fields(dsn)
	replaced := false
	for i, f := range fields {
		if strings.HasPrefix(f, "dbname=") {
			fields[i] = "dbname=" + database
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, "dbname="+database)
	}
	return strings.Join(fields, " "), nil
}
