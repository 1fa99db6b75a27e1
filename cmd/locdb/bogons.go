package main

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"
	"go4.org/netipx"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/database"
)

func init() {
	listBogonsCmd.Flags().StringVar(&listBogonsFamily, "family", "", "restrict to one address family (ipv4 or ipv6)")
	rootCmd.AddCommand(listBogonsCmd)
}

var (
	listBogonsCmd = &cobra.Command{
		Use:   "list-bogons",
		Short: "list the address space not covered by any network",
		Args:  cobra.NoArgs,
		RunE:  listBogons,
	}

	listBogonsFamily string
)

func listBogons(cmd *cobra.Command, args []string) error {
	var families []addr.Family
	switch listBogonsFamily {
	case "":
		families = []addr.Family{addr.FamilyV4, addr.FamilyV6}
	case "ipv4", "4":
		families = []addr.Family{addr.FamilyV4}
	case "ipv6", "6":
		families = []addr.Family{addr.FamilyV6}
	default:
		return fmt.Errorf("unknown address family %q", listBogonsFamily)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	for _, family := range families {
		bogons, err := collectBogons(db, family)
		if err != nil {
			return err
		}
		for _, prefix := range bogons {
			fmt.Println(prefix)
		}
	}
	return nil
}

// collectBogons subtracts all covered networks of the family from its
// full address space.
func collectBogons(db *database.Database, family addr.Family) ([]netip.Prefix, error) {
	var builder netipx.IPSetBuilder
	if family == addr.FamilyV4 {
		builder.AddPrefix(netip.MustParsePrefix("0.0.0.0/0"))
	} else {
		builder.AddPrefix(netip.MustParsePrefix("::/0"))
		// The mapped range belongs to the IPv4 world.
		builder.RemovePrefix(addr.V4MappedPrefix)
	}

	for network, err := range db.Networks(database.Filter{Family: family}) {
		if err != nil {
			return nil, err
		}
		builder.RemovePrefix(network.Prefix)
	}

	set, err := builder.IPSet()
	if err != nil {
		return nil, fmt.Errorf("build bogon set: %w", err)
	}
	return set.Prefixes(), nil
}
