package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locdb/locdb/database"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "print database metadata and all networks",
	Args:  cobra.NoArgs,
	RunE:  dump,
}

func dump(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	fmt.Printf("Vendor:      %s\n", db.Vendor())
	fmt.Printf("Description: %s\n", db.Description())
	fmt.Printf("License:     %s\n", db.License())
	fmt.Printf("Created:     %s\n", db.CreatedAt().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Records:     %d AS, %d countries, %d networks\n",
		db.ASCount(), db.CountryCount(), db.NetworkCount())
	fmt.Println()

	for network, err := range db.Networks(database.Filter{}) {
		if err != nil {
			return err
		}
		fmt.Printf("%s", network.Prefix)
		if network.Country != "" {
			fmt.Printf(" country=%s", network.Country)
		}
		if network.ASN != 0 {
			fmt.Printf(" as=AS%d", network.ASN)
		}
		if network.Flags != 0 {
			fmt.Printf(" flags=%s", network.Flags)
		}
		fmt.Println()
	}
	return nil
}
