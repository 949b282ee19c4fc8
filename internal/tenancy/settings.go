package tenancy

import (
	"fmt"
	"net/url"
	"strconv"
)

// Settings is the tenant's opaque configuration document, stored as
// JSONB on the tenant row.
type Settings map[string]any

// ConnectionString extracts an explicit database override from the
// settings document. Older deployments stored the override under
// several spellings and as discrete host/port fields; all of them are
// still honored. A direct connection string wins over discrete parts.
func (s Settings) ConnectionString() string {
	if s == nil {
		return ""
	}
	for _, key := range []string{"databaseUrl", "database_url", "dbUrl", "connectionString", "connection_string"} {
		if v, ok := s[key].(string); ok && v != "" {
			return v
		}
	}
	if nested, ok := s["database"].(map[string]any); ok {
		for _, key := range []string{"connectionString", "url"} {
			if v, ok := nested[key].(string); ok && v != "" {
				return v
			}
		}
		if cs := connectionFromParts(nested); cs != "" {
			return cs
		}
	}
	return connectionFromParts(s)
}

func connectionFromParts(m map[string]any) string {
	host := stringValue(m["host"])
	dbname := stringValue(m["database"])
	if dbname == "" {
		dbname = stringValue(m["dbname"])
	}
	if dbname == "" {
		dbname = stringValue(m["name"])
	}
	if host == "" || dbname == "" {
		return ""
	}

	port := intValue(m["port"])
	if port == 0 {
		port = 5432
	}
	user := stringValue(m["user"])
	if user == "" {
		user = stringValue(m["username"])
	}
	password := stringValue(m["password"])
	sslmode := stringValue(m["sslmode"])
	if sslmode == "" {
		if ssl, ok := m["ssl"].(bool); ok && ssl {
			sslmode = "require"
		} else {
			sslmode = "disable"
		}
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + dbname,
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	q := url.Values{}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}
