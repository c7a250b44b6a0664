// Command fpctl is a thin driver over the fpcore orchestrator: it owns
// argument parsing, file I/O, and progress reporting, and nothing else
// (spec §6: "Environment and CLI are out of scope" of the core itself).
// Its command set (enroll/identify/stats/fetch) is a direct descendant
// of the teacher's main.go switch (record/upload/stats/clean/list),
// rebuilt on cobra instead of a raw os.Args switch.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soundmark/fpcore/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Get().Debug("no .env file loaded", slog.Any("error", err))
	}

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fpctl",
		Short: "Audio fingerprint enrollment and identification",
	}

	cmd.PersistentFlags().String("index", "index.fpidx", "path to the index file")
	cmd.PersistentFlags().String("catalog-dsn", "catalog.db", "SQLite path or Postgres DSN for the track catalog")
	cmd.PersistentFlags().Bool("catalog-postgres", false, "treat --catalog-dsn as a Postgres DSN instead of a SQLite path")

	cmd.AddCommand(newEnrollCmd())
	cmd.AddCommand(newIdentifyCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newFetchCmd())

	return cmd
}
