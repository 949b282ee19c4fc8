package masterdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitCostPreference(t *testing.T) {
	cases := []struct {
		name string
		p    Product
		want float64
	}{
		{"average cost wins", Product{AvgCost: 30000, LastPurchasePrice: 32000, Cost: 35000}, 30000},
		{"last purchase when no average", Product{LastPurchasePrice: 32000, Cost: 35000}, 32000},
		{"catalog cost as last resort", Product{Cost: 35000}, 35000},
		{"all unknown", Product{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, tc.p.UnitCost(), 0.001)
		})
	}
}

func TestLowOnStock(t *testing.T) {
	require.True(t, Product{Stock: 2, MinStock: 5}.LowOnStock())
	require.True(t, Product{Stock: 5, MinStock: 5}.LowOnStock())
	require.False(t, Product{Stock: 6, MinStock: 5}.LowOnStock())
	// A zero minimum disables the alert entirely.
	require.False(t, Product{Stock: 0, MinStock: 0}.LowOnStock())
}

func TestNormalizeProduct(t *testing.T) {
	p := Product{Code: "  BRG-1 ", Name: " Kabel Data ", Price: 15000}
	require.NoError(t, normalizeProduct(&p))
	require.Equal(t, "BRG-1", p.Code)
	require.Equal(t, "Kabel Data", p.Name)
	require.Equal(t, "pcs", p.Unit)

	missing := Product{Name: "X"}
	require.Error(t, normalizeProduct(&missing))

	negative := Product{Code: "X", Name: "Y", Price: -1}
	require.Error(t, normalizeProduct(&negative))
}
