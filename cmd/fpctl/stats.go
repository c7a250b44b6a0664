package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/index"
	"github.com/soundmark/fpcore/internal/metrics"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report the size of the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Default()

			indexPath, _ := cmd.Flags().GetString("index")
			store, err := index.OpenFile(ctx, indexPath, index.ModeRead, cfg)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}
			metrics.ObserveStats(stats.NumHashes, stats.NumPostings, stats.NumTracks)

			fmt.Println("index statistics")
			fmt.Println("─────────────────")
			fmt.Printf("tracks:   %s\n", humanize.Comma(int64(stats.NumTracks)))
			fmt.Printf("hashes:   %s\n", humanize.Comma(int64(stats.NumHashes)))
			fmt.Printf("postings: %s\n", humanize.Comma(int64(stats.NumPostings)))
			return nil
		},
	}
}
