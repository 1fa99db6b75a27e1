package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/database"
	"github.com/locdb/locdb/format"
)

// filterFlags are the network selection flags shared by the
// enumerating commands.
type filterFlags struct {
	family  string
	country string
	asn     uint32
	flags   []string
}

func (ff *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ff.family, "family", "", "restrict to one address family (ipv4 or ipv6)")
	cmd.Flags().StringVar(&ff.country, "country", "", "restrict to one country code")
	cmd.Flags().Uint32Var(&ff.asn, "asn", 0, "restrict to one autonomous system")
	cmd.Flags().StringSliceVar(&ff.flags, "flags", nil, "restrict to networks with all given flags")
}

func (ff *filterFlags) filter() (database.Filter, error) {
	filter := database.Filter{
		Country: ff.country,
		ASN:     ff.asn,
	}

	switch ff.family {
	case "":
	case "ipv4", "4":
		filter.Family = addr.FamilyV4
	case "ipv6", "6":
		filter.Family = addr.FamilyV6
	default:
		return database.Filter{}, fmt.Errorf("unknown address family %q", ff.family)
	}

	for _, name := range ff.flags {
		flag, err := format.ParseFlag(strings.TrimSpace(name))
		if err != nil {
			return database.Filter{}, err
		}
		filter.FlagMask |= flag
		filter.FlagMatch |= flag
	}

	return filter, nil
}

func init() {
	listNetworksFlags.register(listNetworksCmd)
	rootCmd.AddCommand(listNetworksCmd)
}

var (
	listNetworksCmd = &cobra.Command{
		Use:   "list-networks",
		Short: "list all networks matching the given filters",
		Args:  cobra.NoArgs,
		RunE:  listNetworks,
	}

	listNetworksFlags filterFlags
)

func listNetworks(cmd *cobra.Command, args []string) error {
	filter, err := listNetworksFlags.filter()
	if err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	found := false
	for network, err := range db.Networks(filter) {
		if err != nil {
			return err
		}
		found = true
		fmt.Println(network.Prefix)
	}

	if !found {
		return errNoResult
	}
	return nil
}
