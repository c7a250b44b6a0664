package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/soundmark/fpcore"
	"github.com/soundmark/fpcore/internal/audioio"
	"github.com/soundmark/fpcore/internal/catalog"
	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/index"
)

func newEnrollCmd() *cobra.Command {
	var title, artist string

	cmd := &cobra.Command{
		Use:   "enroll [file]",
		Short: "Decode, fingerprint, and index one audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := cmd.Context()

			cfg := config.Default()
			indexPath, _ := cmd.Flags().GetString("index")

			bar := progressbar.Default(-1, "decoding "+path)
			decoded, err := audioio.DetectAndDecode(path)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			_ = bar.Finish()

			if decoded.SampleRate != cfg.SampleRate {
				return fmt.Errorf("file is at %d Hz, expected %d Hz (resample before enrolling)", decoded.SampleRate, cfg.SampleRate)
			}

			cat, err := openCatalog(cmd)
			if err != nil {
				return err
			}
			defer cat.Close()

			trackID, err := cat.Register(ctx, title, artist, path, float64(len(decoded.PCM))/float64(cfg.SampleRate), cfg.SampleRate)
			if err != nil {
				return fmt.Errorf("registering track metadata: %w", err)
			}

			store, err := index.OpenFile(ctx, indexPath, index.ModeAppend, cfg)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer store.Close()

			orch := fpcore.New(cfg, store)
			stats, err := orch.Enroll(ctx, trackID, decoded.PCM)
			if err != nil {
				return fmt.Errorf("enrolling track %d: %w", trackID, err)
			}

			duration := float64(len(decoded.PCM)) / float64(cfg.SampleRate)
			fmt.Printf("enrolled %q as track %d: %s hashes, %.1fs of audio\n",
				title, trackID, humanize.Comma(int64(stats.NumHashes)), duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "track title")
	cmd.Flags().StringVar(&artist, "artist", "", "track artist")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("artist")

	return cmd
}

func openCatalog(cmd *cobra.Command) (catalog.Catalog, error) {
	dsn, _ := cmd.Flags().GetString("catalog-dsn")
	usePostgres, _ := cmd.Flags().GetBool("catalog-postgres")
	if usePostgres {
		return catalog.OpenPostgres(dsn)
	}
	return catalog.OpenSQLite(dsn)
}
