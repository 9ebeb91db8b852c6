package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShippingAddressValueScan(t *testing.T) {
	line2 := "  Suite 4 "
	addr := ShippingAddress{
		FullName:   "Ana Reyes",
		Line1:      "12 Gear St",
		Line2:      &line2,
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
	}.Normalize()

	require.Equal(t, "US", addr.Country)
	require.Equal(t, "Suite 4", *addr.Line2)

	raw, err := addr.Value()
	require.NoError(t, err)

	var decoded ShippingAddress
	require.NoError(t, decoded.Scan([]byte(raw.(string))))
	require.Equal(t, addr, decoded)
}

func TestShippingAddressValueRequiresLine1(t *testing.T) {
	_, err := ShippingAddress{City: "Austin", PostalCode: "78701"}.Value()
	require.Error(t, err)
}

func TestShippingAddressScanNil(t *testing.T) {
	addr := ShippingAddress{City: "x"}
	require.NoError(t, addr.Scan(nil))
	require.Equal(t, ShippingAddress{}, addr)
}
