package tenancy

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatabaseNameDeterministic(t *testing.T) {
	first := DatabaseName("kopikita")
	second := DatabaseName("kopikita")
	require.Equal(t, first, second)
	require.True(t, strings.HasPrefix(first, "tenant_kopikita_"))
}

func TestDatabaseNameSafeCharset(t *testing.T) {
	name := DatabaseName("Kopi-Kita.ID")
	require.Regexp(t, regexp.MustCompile(`^[a-z0-9_]+$`), name)
	require.True(t, strings.HasPrefix(name, "tenant_kopi_kita_id_"))
}

func TestDatabaseNameLengthCap(t *testing.T) {
	long := strings.Repeat("warung-sejahtera-", 8)
	name := DatabaseName(long)
	require.LessOrEqual(t, len(name), 63)
}

func TestDatabaseNameTruncationCollision(t *testing.T) {
	base := strings.Repeat("a", 70)
	first := DatabaseName(base + "x")
	second := DatabaseName(base + "y")
	require.NotEqual(t, first, second)
	require.LessOrEqual(t, len(first), 63)
	require.LessOrEqual(t, len(second), 63)
}

func TestDatabaseNameSanitizedAwayFallsBackToHash(t *testing.T) {
	name := DatabaseName("---")
	require.True(t, strings.HasPrefix(name, "tenant_"))
	require.Greater(t, len(name), len("tenant_"))
}
