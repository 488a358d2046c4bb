package cmd

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/audio-emotion/internal/app"
	"github.com/RyanBlaney/audio-emotion/internal/session"
)

var (
	// Training command flags
	trainManifest string
	trainOut      string
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train [flags]",
	Short: "Train an emotion model from labelled audio",
	Long: `Train a random forest emotion classifier from labelled audio files.

Labelled files come from a YAML manifest or from a data directory holding one
sub-directory per emotion (happy/, sad/, angry/, ...). Files that fail to
decode are skipped and reported. The trained model is written to --out.

Manifest format:
  samples:
    - path: clips/laugh.wav
      emotion: happy
    - path: clips/sigh.mp3
      emotion: sad

Examples:
  # Train from a manifest
  audio-emotion train --manifest dataset.yaml --out model.emo

  # Train from a directory layout with more trees
  audio-emotion train --data-dir ./recordings --estimators 300 --out model.emo`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainManifest, "manifest", "",
		"YAML manifest of labelled files")
	trainCmd.Flags().StringVar(&trainOut, "out", "model.emo",
		"path to write the trained model to")
	trainCmd.Flags().Int("estimators", 100, "number of trees in the forest")
	trainCmd.Flags().Int("workers", 4, "parallel extraction and tree fitting workers")
	trainCmd.Flags().Uint64("seed", 42, "random seed for the split and the forest")
}

func runTrain(cmd *cobra.Command, args []string) error {
	return runWithApp(newAppContext(""), func(ctx context.Context, a *app.EmotionApp) error {
		items, err := loadItems(trainManifest)
		if err != nil {
			return err
		}
		return a.Train(ctx, items, trainOut)
	})
}

// loadItems reads labelled files from a manifest, or from the data directory otherwise
func loadItems(manifest string) ([]session.BatchItem, error) {
	if manifest != "" {
		return app.LoadManifest(manifest)
	}

	dir := dataDir
	if dir == "" {
		dir = viper.GetString("data_dir")
	}
	if dir == "" {
		return nil, fmt.Errorf("requires --manifest or --data-dir")
	}
	return app.ScanDataDir(dir, logging.WithFields(logging.Fields{
		"component": "data_dir",
		"path":      dir,
	}))
}
