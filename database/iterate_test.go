package database

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/format"
	"github.com/locdb/locdb/writer"
)

func collect(t *testing.T, db *Database, filter Filter) []Network {
	t.Helper()

	var networks []Network
	for network, err := range db.Networks(filter) {
		require.NoError(t, err)
		networks = append(networks, network)
	}
	return networks
}

func testWriter(t *testing.T) *writer.Writer {
	t.Helper()

	w, err := writer.New(nil, nil)
	require.NoError(t, err)
	return w
}

func TestMergeAdjacent(t *testing.T) {
	t.Parallel()

	w := testWriter(t)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/9"), "US", 64512, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.128.0.0/9"), "US", 64512, 0))

	db := openWritten(t, w)

	networks := collect(t, db, Filter{})
	require.Len(t, networks, 1, "adjacent networks with identical payload must merge")
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), networks[0].Prefix)
	assert.Equal(t, "US", networks[0].Country)
}

func TestDedupEnclosed(t *testing.T) {
	t.Parallel()

	w := testWriter(t)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 64512, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.1.0.0/16"), "US", 64512, 0))
	// Different payload survives.
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.2.0.0/16"), "CA", 64512, 0))

	db := openWritten(t, w)

	networks := collect(t, db, Filter{})
	require.Len(t, networks, 2)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), networks[0].Prefix)
	assert.Equal(t, netip.MustParsePrefix("10.2.0.0/16"), networks[1].Prefix)
}

func TestEnumerationOrder(t *testing.T) {
	t.Parallel()

	w := testWriter(t)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("2001:db8::/32"), "DE", 0, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 0, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("192.0.2.0/24"), "CA", 0, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.1.0.0/16"), "CA", 0, 0))

	db := openWritten(t, w)

	networks := collect(t, db, Filter{})
	require.Len(t, networks, 4)

	// Ascending address order, covering networks before their subnets.
	for i := 1; i < len(networks); i++ {
		prev := addr.First(networks[i-1].Prefix)
		cur := addr.First(networks[i].Prefix)
		cmp := addr.Compare(prev, cur)
		if cmp == 0 {
			assert.Less(t, networks[i-1].Prefix.Bits(), networks[i].Prefix.Bits())
		} else {
			assert.Equal(t, -1, cmp, "networks must ascend: %s before %s", networks[i-1], networks[i])
		}
	}
}

func TestEnumerationFilters(t *testing.T) {
	t.Parallel()

	w := testWriter(t)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 64512, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("192.0.2.0/24"), "DE", 65001, format.FlagAnycast))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("2001:db8::/32"), "DE", 65001, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("2001:db8:1::/48"), "XD", 0, format.FlagDrop))

	db := openWritten(t, w)

	// Family filter.
	v4 := collect(t, db, Filter{Family: addr.FamilyV4})
	require.Len(t, v4, 2)
	for _, network := range v4 {
		assert.Equal(t, addr.FamilyV4, network.Family())
		assert.True(t, network.Prefix.Addr().Is4())
	}
	v6 := collect(t, db, Filter{Family: addr.FamilyV6})
	require.Len(t, v6, 2)
	for _, network := range v6 {
		assert.Equal(t, addr.FamilyV6, network.Family())
	}

	// Flag filter.
	drops := collect(t, db, Filter{FlagMask: format.FlagDrop, FlagMatch: format.FlagDrop})
	require.Len(t, drops, 1)
	assert.Equal(t, "XD", drops[0].Country)
	assert.True(t, drops[0].HasFlag(format.FlagDrop))

	// ASN filter.
	asn := collect(t, db, Filter{ASN: 65001})
	require.Len(t, asn, 2)

	// Country filter composes with family.
	de4 := collect(t, db, Filter{Country: "DE", Family: addr.FamilyV4})
	require.Len(t, de4, 1)
	assert.Equal(t, netip.MustParsePrefix("192.0.2.0/24"), de4[0].Prefix)
}

func TestLookupRoundTrip(t *testing.T) {
	t.Parallel()

	w := testWriter(t)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 64512, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.1.0.0/16"), "CA", 64512, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("192.0.2.0/24"), "DE", 65001, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("2001:db8::/32"), "DE", 65001, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("2001:db8:ffff::/48"), "AT", 65002, format.FlagAnycast))

	db := openWritten(t, w)

	// Looking up the first address of every enumerated network returns
	// that network again.
	for network, err := range db.Networks(Filter{}) {
		require.NoError(t, err)
		found, ok, err := db.LookupAddr(network.Prefix.Addr())
		require.NoError(t, err)
		require.True(t, ok, "lookup of %s must match", network)
		assert.Equal(t, network, found)
	}
}

func TestSubNetworks(t *testing.T) {
	t.Parallel()

	w := testWriter(t)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 0, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.1.0.0/16"), "CA", 0, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.2.0.0/16"), "DE", 0, 0))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("192.0.2.0/24"), "FR", 0, 0))

	db := openWritten(t, w)

	var subnets []Network
	for network, err := range db.SubNetworks(netip.MustParsePrefix("10.0.0.0/8"), Filter{}) {
		require.NoError(t, err)
		subnets = append(subnets, network)
	}
	require.Len(t, subnets, 3)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), subnets[0].Prefix)
	assert.Equal(t, netip.MustParsePrefix("10.1.0.0/16"), subnets[1].Prefix)
	assert.Equal(t, netip.MustParsePrefix("10.2.0.0/16"), subnets[2].Prefix)

	// No networks under an uncovered prefix.
	for range db.SubNetworks(netip.MustParsePrefix("172.16.0.0/12"), Filter{}) {
		t.Fatal("did not expect networks under 172.16.0.0/12")
	}

	// Early termination is clean.
	count := 0
	for _, err := range db.Networks(Filter{}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}
