package database

import (
	"net/netip"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/format"
)

// Network is a network returned from a lookup or enumeration. It owns
// all of its data and stays valid after the database is closed.
type Network struct {
	Prefix  netip.Prefix
	Country string
	ASN     uint32
	Flags   format.Flag
}

// HasFlag reports whether the given flag is set on the network.
func (n Network) HasFlag(f format.Flag) bool {
	return n.Flags&f == f
}

// Family returns the address family of the network.
func (n Network) Family() addr.Family {
	return addr.GetFamily(n.Prefix.Addr())
}

// Addr returns the first address of the network.
func (n Network) Addr() netip.Addr {
	return n.Prefix.Addr()
}

// String returns the network prefix in CIDR notation.
func (n Network) String() string {
	return n.Prefix.String()
}

// makeNetwork builds a network from a tree position and its leaf record.
// IPv4-mapped prefixes are presented in their 4-byte form.
func makeNetwork(path [16]byte, depth int, leaf format.RawNetwork) Network {
	ip := netip.AddrFrom16(path)
	prefix := netip.PrefixFrom(ip, depth)
	if depth >= 96 && addr.GetFamily(ip) == addr.FamilyV4 {
		prefix = netip.PrefixFrom(ip.Unmap(), depth-96)
	}
	return Network{
		Prefix:  prefix,
		Country: trimCode(leaf.Country),
		ASN:     leaf.ASN,
		Flags:   leaf.Flags,
	}
}
