package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "list", "output format: list, ipset or nftables")
	exportCmd.Flags().StringVar(&exportSetName, "set-name", "locdb", "set name for ipset and nftables output")
	rootCmd.AddCommand(exportCmd)
}

var (
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "export matching networks as a firewall set",
		Args:  cobra.NoArgs,
		RunE:  export,
	}

	exportFlags   filterFlags
	exportFormat  string
	exportSetName string
)

func export(cmd *cobra.Command, args []string) error {
	filter, err := exportFlags.filter()
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

	var prefixes []string
	for network, err := range db.Networks(filter) {
		if err != nil {
			return err
		}
		prefixes = append(prefixes, network.Prefix.String())
	}

	switch exportFormat {
	case "list":
		for _, prefix := range prefixes {
			fmt.Println(prefix)
		}
	case "ipset":
		fmt.Printf("create %s hash:net -exist\n", exportSetName)
		for _, prefix := range prefixes {
			fmt.Printf("add %s %s -exist\n", exportSetName, prefix)
		}
	case "nftables":
		fmt.Printf("define %s = {\n", exportSetName)
		for _, prefix := range prefixes {
			fmt.Printf("\t%s,\n", prefix)
		}
		fmt.Println("}")
	default:
		return fmt.Errorf("unknown export format %q", strings.TrimSpace(exportFormat))
	}
	return nil
}
