package tenancy

import (
	"strings"

	"github.com/google/uuid"
)

// maxIdentifierLen is PostgreSQL's identifier limit.
const maxIdentifierLen = 63

const dbNamePrefix = "tenant_"

var dbNameNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("lokapos.tenant-db"))

// DatabaseName derives the deterministic database name for a subdomain.
// The subdomain is folded to a safe identifier charset and truncated to
// the engine limit; a short content hash suffix keeps truncated or
// sanitized-away-to-identical names from colliding.
func DatabaseName(subdomain string) string {
	sanitized := sanitizeIdentifier(subdomain)
	suffix := uuid.NewSHA1(dbNameNamespace, []byte(subdomain)).String()[:8]

	maxBody := maxIdentifierLen - len(dbNamePrefix) - len(suffix) - 1
	if len(sanitized) > maxBody {
		sanitized = sanitized[:maxBody]
	}
	if sanitized == "" {
		return dbNamePrefix + suffix
	}
	return dbNamePrefix + sanitized + "_" + suffix
}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
