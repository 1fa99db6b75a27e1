package writer

import (
	"bytes"
	"net/netip"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/format"
)

func TestWriteRejectsDuplicates(t *testing.T) {
	t.Parallel()

	w, err := New(nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddAS(65001, "ONE"))
	require.NoError(t, w.AddAS(65001, "TWO"))

	var sink bytes.Buffer
	assert.ErrorIs(t, w.Write(&sink, format.VersionUnset), ErrDuplicate)

	// Duplicate country codes are rejected the same way.
	w2, err := New(nil, nil)
	require.NoError(t, err)
	require.NoError(t, w2.AddCountry("DE", "EU", "Germany"))
	require.NoError(t, w2.AddCountry("DE", "EU", "Germany again"))
	assert.ErrorIs(t, w2.Write(&sink, format.VersionUnset), ErrDuplicate)
}

func TestAddValidation(t *testing.T) {
	t.Parallel()

	w, err := New(nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, w.AddAS(0, "ZERO"), format.ErrInvalidArgument)
	assert.ErrorIs(t, w.AddCountry("XA", "", "bogus"), format.ErrInvalidArgument)
	assert.ErrorIs(t, w.AddCountry("DE", "EUR", "Germany"), format.ErrInvalidArgument)
	assert.ErrorIs(t, w.AddNetwork(netip.Prefix{}, "DE", 0, 0), format.ErrInvalidArgument)
	assert.ErrorIs(t,
		w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "DE", 0, format.Flag(0x100)),
		format.ErrInvalidArgument)
	assert.ErrorIs(t,
		w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "xx", 0, 0),
		format.ErrInvalidArgument)
}

func TestWriterSeals(t *testing.T) {
	t.Parallel()

	w, err := New(nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddAS(65001, "TEST"))

	var sink bytes.Buffer
	require.NoError(t, w.Write(&sink, format.VersionUnset))

	assert.ErrorIs(t, w.AddAS(65002, "LATE"), ErrSealed)
	assert.ErrorIs(t, w.SetVendor("late vendor"), ErrSealed)
}

func TestWriteUnsupportedVersion(t *testing.T) {
	t.Parallel()

	w, err := New(nil, nil)
	require.NoError(t, err)

	var sink bytes.Buffer
	assert.ErrorIs(t, w.Write(&sink, 7), format.ErrUnsupportedVersion)
}

func TestWrittenTablesAreSorted(t *testing.T) {
	t.Parallel()

	w, err := New(nil, nil)
	require.NoError(t, err)

	// Add a pile of ASes in random order.
	seen := map[uint32]bool{}
	for len(seen) < 100 {
		asn := uint32(gofakeit.Number(1, 4_000_000))
		if seen[asn] {
			continue
		}
		seen[asn] = true
		require.NoError(t, w.AddAS(asn, gofakeit.Company()))
	}

	var sink bytes.Buffer
	require.NoError(t, w.Write(&sink, format.VersionUnset))
	image := sink.Bytes()

	version, err := format.ParseMagic(image)
	require.NoError(t, err)
	assert.EqualValues(t, format.Version1, version)

	hdr, err := format.ParseHeader(image)
	require.NoError(t, err)
	require.NoError(t, hdr.CheckSections(uint64(len(image))))

	asData := image[hdr.ASOff : hdr.ASOff+hdr.ASLen]
	count := len(asData) / format.ASRecordSize
	assert.Equal(t, len(seen), count)
	for i := 1; i < count; i++ {
		prev := format.GetAS(asData[(i-1)*format.ASRecordSize:])
		cur := format.GetAS(asData[i*format.ASRecordSize:])
		assert.Less(t, prev.ASN, cur.ASN, "AS table must ascend strictly")
	}
}

func TestTreeCanonicalisation(t *testing.T) {
	t.Parallel()

	tree := newBuildTree()
	leaf := leafData{country: [2]byte{'U', 'S'}, asn: 64512}

	var a [16]byte
	a[0] = 0x20
	tree.insert(a, 16, leaf)

	// The enclosed identical network is dropped.
	enclosed := a
	enclosed[2] = 0x80
	tree.insert(enclosed, 17, leaf)

	// Re-inserting merges flags.
	withFlag := leaf
	withFlag.flags = format.FlagAnycast
	tree.insert(a, 16, withFlag)

	tree.canonicalize()
	nodes, leaves := tree.serialize()

	require.Len(t, leaves, 1)
	assert.Equal(t, format.FlagAnycast, format.Flag(leaves[0].Flags))
	assert.Len(t, nodes, 17, "root plus one node per prefix bit")

	// No node may have two leaf children with identical payload.
	for _, node := range nodes {
		if node.Zero == format.NullIndex || node.One == format.NullIndex {
			continue
		}
		zero := nodes[node.Zero]
		one := nodes[node.One]
		if zero.NetworkIndex == format.NullIndex || one.NetworkIndex == format.NullIndex {
			continue
		}
		assert.NotEqual(t, leaves[zero.NetworkIndex], leaves[one.NetworkIndex])
	}
}
