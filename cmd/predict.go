package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/audio-emotion/internal/app"
)

var predictModel string

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict [flags] <file>",
	Short: "Classify the emotion of an audio file",
	Long: `Classify the emotion conveyed by an audio file.

The clip is classified with the model given by --model (or model.path in the
configuration). Without a model the deterministic heuristic predictor is used
and a warning is logged.

Examples:
  # Classify with a trained model
  audio-emotion predict --model model.emo clip.wav

  # Heuristic prediction as YAML
  audio-emotion predict -o yaml clip.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictModel, "model", "",
		"model artifact to classify with")
}

func runPredict(cmd *cobra.Command, args []string) error {
	return runWithApp(newAppContext(predictModel), func(ctx context.Context, a *app.EmotionApp) error {
		return a.Predict(ctx, args[0])
	})
}
