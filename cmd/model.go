package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/audio-emotion/internal/app"
)

var inspectTop int

// modelCmd groups the model artifact commands
var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Work with model artifacts",
}

// modelInspectCmd represents the model inspect command
var modelInspectCmd = &cobra.Command{
	Use:   "inspect [flags] <artifact>",
	Short: "Show the metadata of a model artifact",
	Long: `Load a model artifact and print its metadata and most important features.

Examples:
  # Inspect a model
  audio-emotion model inspect model.emo

  # Show the 30 most important features as JSON
  audio-emotion model inspect --top 30 -o json model.emo`,
	Args: cobra.ExactArgs(1),
	RunE: runModelInspect,
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelInspectCmd)

	modelInspectCmd.Flags().IntVar(&inspectTop, "top", 15,
		"number of features to list by importance")
}

func runModelInspect(cmd *cobra.Command, args []string) error {
	return runWithApp(newAppContext(""), func(_ context.Context, a *app.EmotionApp) error {
		return a.InspectModel(args[0], inspectTop)
	})
}
