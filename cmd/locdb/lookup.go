package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup ADDRESS...",
	Short: "look up the network and attributes of one or more addresses",
	Args:  cobra.MinimumNArgs(1),
	RunE:  lookup,
}

func lookup(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	missed := false
	for _, address := range args {
		network, ok, err := db.Lookup(address)
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("no network found", "address", address)
			missed = true
			continue
		}

		fmt.Printf("%s: %s", address, network.Prefix)
		if network.Country != "" {
			fmt.Printf(" country=%s", network.Country)
		}
		if network.ASN != 0 {
			if as, ok, err := db.GetAS(network.ASN); err == nil && ok {
				fmt.Printf(" as=%q", as)
			} else {
				fmt.Printf(" as=AS%d", network.ASN)
			}
		}
		if network.Flags != 0 {
			fmt.Printf(" flags=%s", network.Flags)
		}
		fmt.Println()
	}

	if missed {
		return errNoResult
	}
	return nil
}
