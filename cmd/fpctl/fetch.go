package main

import (
	"fmt"

	"github.com/lrstanley/go-ytdlp"
	"github.com/spf13/cobra"
)

// newFetchCmd downloads one URL as a WAV file suitable for enroll,
// for building a test corpus from a playlist or archive the way the
// teacher's "upload" command assumed a local file was already on disk.
func newFetchCmd() *cobra.Command {
	var outputTemplate string

	cmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Download a track as WAV for enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ytdlp.MustInstall(cmd.Context(), nil)

			dl := ytdlp.New().
				ExtractAudio().
				AudioFormat("wav").
				Output(outputTemplate).
				NoPlaylist()

			if _, err := dl.Run(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("fetching %s: %w", args[0], err)
			}

			fmt.Printf("downloaded %s using template %q\n", args[0], outputTemplate)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputTemplate, "output", "%(title)s.%(ext)s", "yt-dlp output filename template")
	return cmd
}
