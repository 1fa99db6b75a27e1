package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/locdb/locdb/database"
)

var (
	rootCmd = &cobra.Command{
		Use:           "locdb",
		Short:         "query and build location databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	databasePath = pflag.String("database", database.DefaultPath, "set database file")
	logLevel     = pflag.String("log", "", "set log level")
)

// errNoResult makes a command exit with code 2: the query worked, but
// nothing matched.
var errNoResult = errors.New("no result")

func main() {
	pflag.Parse()

	if err := setupLogging(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errNoResult) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDatabase opens the database selected by the --database flag.
func openDatabase() (*database.Database, error) {
	db, err := database.Open(*databasePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", *databasePath, err)
	}
	return db, nil
}
