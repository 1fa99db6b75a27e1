package database

import (
	"fmt"
	"net/netip"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/format"
)

// NetworkCount returns the number of network-leaf records.
func (db *Database) NetworkCount() int {
	return len(db.networks) / format.NetworkRecordSize
}

func (db *Database) nodeCount() uint32 {
	return uint32(len(db.tree) / format.TreeNodeSize)
}

func (db *Database) nodeAt(i uint32) format.RawTreeNode {
	return format.GetTreeNode(db.tree[int(i)*format.TreeNodeSize:])
}

func (db *Database) leafAt(i uint32) (format.RawNetwork, error) {
	if int(i) >= db.NetworkCount() {
		return format.RawNetwork{}, fmt.Errorf("%w: network index %d out of range", format.ErrInvalidData, i)
	}
	return format.GetNetwork(db.networks[int(i)*format.NetworkRecordSize:]), nil
}

// Lookup parses the given address and returns its enclosing network.
// The address may be of either family. The boolean is false when no
// network covers the address.
func (db *Database) Lookup(address string) (Network, bool, error) {
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return Network{}, false, fmt.Errorf("%w: %q is not an IP address", format.ErrInvalidArgument, address)
	}
	return db.LookupAddr(ip)
}

// LookupAddr returns the network enclosing the given address via
// longest-prefix match on the network tree.
func (db *Database) LookupAddr(ip netip.Addr) (Network, bool, error) {
	count := db.nodeCount()
	if count == 0 {
		return Network{}, false, nil
	}

	a := addr.Canonical(ip)

	// Walk the tree along the address bits and remember the deepest
	// node carrying a network. The walk ends at a missing branch.
	var (
		bestLeaf  = uint32(format.NullIndex)
		bestDepth int
		node      uint32
	)
	for depth := 0; ; depth++ {
		n := db.nodeAt(node)
		if n.NetworkIndex != format.NullIndex {
			bestLeaf = n.NetworkIndex
			bestDepth = depth
		}
		if depth == 128 {
			break
		}

		next := n.Zero
		if addr.Bit(a, depth) {
			next = n.One
		}
		if next == format.NullIndex {
			break
		}
		if next >= count {
			return Network{}, false, fmt.Errorf("%w: tree node %d out of range", format.ErrInvalidData, next)
		}
		node = next
	}

	if bestLeaf == format.NullIndex {
		return Network{}, false, nil
	}
	leaf, err := db.leafAt(bestLeaf)
	if err != nil {
		return Network{}, false, err
	}

	// The winning network's address is the matched path, zero-extended.
	path := addr.And(a, addr.Mask(bestDepth)).As16()
	return makeNetwork(path, bestDepth, leaf), true, nil
}
