package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	verifyCmd.Flags().StringVar(&verifyKeyFile, "key", "", "PEM-encoded Ed25519 public key")
	_ = verifyCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(verifyCmd)
}

var (
	verifyCmd = &cobra.Command{
		Use:   "verify --key PUBKEY",
		Short: "verify the database signature",
		Args:  cobra.NoArgs,
		RunE:  verify,
	}

	verifyKeyFile string
)

func verify(cmd *cobra.Command, args []string) error {
	pubkey, err := os.ReadFile(verifyKeyFile)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Verify(pubkey); err != nil {
		return err
	}
	fmt.Println("signature is valid")
	return nil
}
