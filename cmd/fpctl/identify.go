package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundmark/fpcore"
	"github.com/soundmark/fpcore/internal/audioio"
	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/index"
)

func newIdentifyCmd() *cobra.Command {
	var topK int
	var timeoutSec float64

	cmd := &cobra.Command{
		Use:   "identify [file]",
		Short: "Fingerprint a clip and search the index for a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ctx := cmd.Context()
			cfg := config.Default()

			decoded, err := audioio.DetectAndDecode(path)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			if decoded.SampleRate != cfg.SampleRate {
				return fmt.Errorf("file is at %d Hz, expected %d Hz (resample before identifying)", decoded.SampleRate, cfg.SampleRate)
			}

			indexPath, _ := cmd.Flags().GetString("index")
			store, err := index.OpenFile(ctx, indexPath, index.ModeRead, cfg)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer store.Close()

			cat, err := openCatalog(cmd)
			if err != nil {
				return err
			}
			defer cat.Close()

			orch := fpcore.New(cfg, store)
			result, err := orch.Identify(ctx, decoded.PCM, topK, time.Duration(timeoutSec*float64(time.Second)))
			if err != nil {
				return fmt.Errorf("identify: %w", err)
			}

			if result.Partial {
				fmt.Println("warning: identify timed out, ranking may be incomplete")
			}
			if len(result.Candidates) == 0 {
				fmt.Println("no match")
				return nil
			}

			for i, c := range result.Candidates {
				label := fmt.Sprintf("track %d", c.TrackID)
				if track, err := cat.Get(ctx, c.TrackID); err == nil {
					label = fmt.Sprintf("%q by %s", track.Title, track.Artist)
				}
				fmt.Printf("%d. %s — score %d, delta %d frames\n", i+1, label, c.Score, c.Delta)
			}
			if !result.Confident {
				fmt.Println("no confident match (ranking shown for diagnostics)")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 5, "number of ranked candidates to return")
	cmd.Flags().Float64Var(&timeoutSec, "timeout", 1.0, "wall-clock budget in seconds")

	return cmd
}
