package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/audio-emotion/internal/app"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [flags] <files...>",
	Short: "Extract emotion features from audio files",
	Long: `Decode audio files and print the acoustic features used for emotion classification.

For every file the command reports the scalar descriptors (spectral centroid,
rolloff, zero crossing rate, tempo and RMS energy) and the full feature vector
fed to the classifier.

Examples:
  # Summarise a single clip
  audio-emotion extract clip.wav

  # Extract several clips as JSON into a file
  audio-emotion extract -o json --output-file features.json a.wav b.mp3 c.flac`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("requires at least one audio file")
		}
		return nil
	},
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	return runWithApp(newAppContext(""), func(ctx context.Context, a *app.EmotionApp) error {
		return a.Extract(ctx, args)
	})
}
