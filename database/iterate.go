package database

import (
	"fmt"
	"iter"
	"net/netip"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/format"
)

// Filter selects networks during enumeration. The zero value matches
// every network; set fields compose with logical AND.
type Filter struct {
	// Family restricts to one address family.
	Family addr.Family
	// FlagMask/FlagMatch select networks with flags&mask == match.
	// A zero mask with a zero match matches everything.
	FlagMask  format.Flag
	FlagMatch format.Flag
	// ASN restricts to networks of one autonomous system.
	ASN uint32
	// Country restricts to one country code.
	Country string
}

// Matches reports whether the network passes the filter.
func (f Filter) Matches(n Network) bool {
	if f.Family != addr.FamilyAny && n.Family() != f.Family {
		return false
	}
	if n.Flags&f.FlagMask != f.FlagMatch {
		return false
	}
	if f.ASN != 0 && n.ASN != f.ASN {
		return false
	}
	if f.Country != "" && n.Country != f.Country {
		return false
	}
	return true
}

// Networks enumerates all networks matching the filter in ascending
// address order. Enumeration is lazy; dropping the iterator stops the
// traversal. An enumeration error ends the sequence after being
// yielded.
func (db *Database) Networks(filter Filter) iter.Seq2[Network, error] {
	return func(yield func(Network, error) bool) {
		if db.nodeCount() == 0 {
			return
		}
		var path [16]byte
		db.walk(0, path, 0, filter, yield)
	}
}

// SubNetworks enumerates the networks within the given prefix, in
// ascending address order.
func (db *Database) SubNetworks(prefix netip.Prefix, filter Filter) iter.Seq2[Network, error] {
	return func(yield func(Network, error) bool) {
		count := db.nodeCount()
		if count == 0 || !prefix.IsValid() {
			return
		}

		bits := prefix.Bits()
		base := addr.First(prefix)
		if prefix.Addr().Is4() {
			bits += 96
		}

		// Descend to the subtree root. A missing branch means the
		// prefix holds no networks.
		node := uint32(0)
		for depth := 0; depth < bits; depth++ {
			n := db.nodeAt(node)
			next := n.Zero
			if addr.Bit(base, depth) {
				next = n.One
			}
			if next == format.NullIndex {
				return
			}
			if next >= count {
				yield(Network{}, fmt.Errorf("%w: tree node %d out of range", format.ErrInvalidData, next))
				return
			}
			node = next
		}

		db.walk(node, base.As16(), bits, filter, yield)
	}
}

// walk traverses the subtree in address order: a node's own network
// first, then the zero branch, then the one branch. It reports whether
// the traversal should continue.
func (db *Database) walk(node uint32, path [16]byte, depth int, filter Filter, yield func(Network, error) bool) bool {
	if depth > 128 {
		yield(Network{}, fmt.Errorf("%w: tree deeper than 128 bits", format.ErrInvalidData))
		return false
	}
	n := db.nodeAt(node)

	if n.NetworkIndex != format.NullIndex {
		leaf, err := db.leafAt(n.NetworkIndex)
		if err != nil {
			yield(Network{}, err)
			return false
		}
		network := makeNetwork(path, depth, leaf)
		if filter.Matches(network) && !yield(network, nil) {
			return false
		}
	}
	if depth == 128 {
		return true
	}

	count := db.nodeCount()
	for _, branch := range []uint32{n.Zero, n.One} {
		if branch == format.NullIndex {
			continue
		}
		if branch >= count {
			yield(Network{}, fmt.Errorf("%w: tree node %d out of range", format.ErrInvalidData, branch))
			return false
		}
	}

	if n.Zero != format.NullIndex {
		if !db.walk(n.Zero, path, depth+1, filter, yield) {
			return false
		}
	}
	if n.One != format.NullIndex {
		one := netip.AddrFrom16(path)
		one = addr.SetBit(one, depth, true)
		if !db.walk(n.One, one.As16(), depth+1, filter, yield) {
			return false
		}
	}
	return true
}
