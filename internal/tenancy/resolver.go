package tenancy

import (
	"os"
	"strings"
)

// Resolver determines a tenant's database connection string without
// touching the network. Resolution order, first match wins: explicit
// settings override, then the per-tenant environment variable. An empty
// result means the caller should provision.
type Resolver struct {
	lookupEnv func(string) string
}

// NewResolver builds a resolver backed by the process environment.
func NewResolver() *Resolver {
	return &Resolver{lookupEnv: os.Getenv}
}

// WithEnvLookup overrides environment access for tests.
func (r *Resolver) WithEnvLookup(fn func(string) string) {
	if fn != nil {
		r.lookupEnv = fn
	}
}

// Resolve returns the connection string for the tenant and whether one
// was found.
func (r *Resolver) Resolve(t *Tenant) (string, bool) {
	if t == nil {
		return "", false
	}
	if cs := t.Settings.ConnectionString(); cs != "" {
		return cs, true
	}
	if cs := r.lookupEnv(EnvKey(t.Subdomain)); cs != "" {
		return cs, true
	}
	return "", false
}

// EnvKey returns the per-tenant override variable name, e.g.
// TENANT_KOPIKITA_DATABASE_URL for subdomain kopikita.
func EnvKey(subdomain string) string {
	upper := strings.ToUpper(subdomain)
	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return "TENANT_" + b.String() + "_DATABASE_URL"
}
