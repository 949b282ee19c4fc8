package tenancy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverPrefersSettingsOverEnv(t *testing.T) {
	resolver := NewResolver()
	resolver.WithEnvLookup(func(key string) string {
		return "postgres://env@h/envdb"
	})

	tenant := &Tenant{
		Subdomain: "kopikita",
		Settings:  Settings{"databaseUrl": "postgres://settings@h/db"},
	}
	cs, ok := resolver.Resolve(tenant)
	require.True(t, ok)
	require.Equal(t, "postgres://settings@h/db", cs)
}

func TestResolverFallsBackToEnv(t *testing.T) {
	resolver := NewResolver()
	var asked string
	resolver.WithEnvLookup(func(key string) string {
		asked = key
		if key == "TENANT_KOPI_KITA_DATABASE_URL" {
			return "postgres://env@h/envdb"
		}
		return ""
	})

	tenant := &Tenant{Subdomain: "kopi-kita", Settings: Settings{}}
	cs, ok := resolver.Resolve(tenant)
	require.True(t, ok)
	require.Equal(t, "postgres://env@h/envdb", cs)
	require.Equal(t, "TENANT_KOPI_KITA_DATABASE_URL", asked)
}

func TestResolverMissTriggersProvisioning(t *testing.T) {
	resolver := NewResolver()
	resolver.WithEnvLookup(func(string) string { return "" })

	cs, ok := resolver.Resolve(&Tenant{Subdomain: "baru", Settings: Settings{}})
	require.False(t, ok)
	require.Empty(t, cs)
}

func TestEnvKey(t *testing.T) {
	require.Equal(t, "TENANT_KOPIKITA_DATABASE_URL", EnvKey("kopikita"))
	require.Equal(t, "TENANT_KOPI_KITA_DATABASE_URL", EnvKey("kopi-kita"))
	require.Equal(t, "TENANT_TOKO99_DATABASE_URL", EnvKey("toko99"))
}
