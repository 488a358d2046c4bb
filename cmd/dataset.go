package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/audio-emotion/internal/app"
)

var datasetManifest string

// datasetCmd groups the dataset commands
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect labelled training data",
}

// datasetReportCmd represents the dataset report command
var datasetReportCmd = &cobra.Command{
	Use:   "report [flags]",
	Short: "Score the balance and size of a labelled dataset",
	Long: `Extract every labelled file and report how ready the dataset is for training.

The report covers the per-emotion distribution, balance and size scores, the
emotions that are missing entirely and recommendations for further collection.

Examples:
  # Report on a manifest
  audio-emotion dataset report --manifest dataset.yaml

  # Report on a directory layout as JSON
  audio-emotion dataset report --data-dir ./recordings -o json`,
	Args: cobra.NoArgs,
	RunE: runDatasetReport,
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetReportCmd)

	datasetReportCmd.Flags().StringVar(&datasetManifest, "manifest", "",
		"YAML manifest of labelled files")
}

func runDatasetReport(cmd *cobra.Command, args []string) error {
	return runWithApp(newAppContext(""), func(ctx context.Context, a *app.EmotionApp) error {
		items, err := loadItems(datasetManifest)
		if err != nil {
			return err
		}
		return a.DatasetReport(ctx, items)
	})
}
