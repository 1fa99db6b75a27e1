package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/locdb/locdb/config"
	"github.com/locdb/locdb/format"
)

func init() {
	composeCmd.Flags().StringVar(&composeSourceFile, "source", "", "composition document (yaml or json)")
	composeCmd.Flags().StringVar(&composeOutputFile, "output", "", "database file to write")
	_ = composeCmd.MarkFlagRequired("source")
	_ = composeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(composeCmd)
}

var (
	composeCmd = &cobra.Command{
		Use:   "compose --source FILE --output FILE",
		Short: "build a database from a composition document",
		Args:  cobra.NoArgs,
		RunE:  compose,
	}

	composeSourceFile string
	composeOutputFile string
)

func compose(cmd *cobra.Command, args []string) error {
	source, err := config.LoadSource(composeSourceFile)
	if err != nil {
		return err
	}

	w, err := source.NewWriter()
	if err != nil {
		return err
	}

	sink, err := os.Create(composeOutputFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", composeOutputFile, err)
	}
	if err := w.Write(sink, format.VersionLatest); err != nil {
		_ = sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close %s: %w", composeOutputFile, err)
	}

	slog.Info(
		"database written",
		"output", composeOutputFile,
		"as", len(source.AS),
		"countries", len(source.Countries),
		"networks", len(source.Networks),
	)
	return nil
}
