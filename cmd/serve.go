package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/audio-emotion/internal/app"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Serve the emotion analysis HTTP API",
	Long: `Run the HTTP API for emotion analysis, sample collection and training.

Endpoints:
  GET    /healthz             liveness and model state
  POST   /analyze/audio       classify an uploaded clip (multipart field "audio")
  POST   /training/samples    add a labelled clip (fields "audio" and "emotion")
  GET    /training/samples    dataset quality report
  DELETE /training/samples    clear the dataset
  POST   /training/train      train and activate a model
  GET    /model               active model metadata
  PUT    /model               upload a model artifact
  GET    /model/artifact      download the active model

Examples:
  # Serve with a trained model
  audio-emotion serve --addr :8000 --model model.emo

  # Serve heuristic predictions until a model is trained
  audio-emotion serve --allow-heuristic --log-file /var/log/audio-emotion.log`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8000", "address to listen on")
	serveCmd.Flags().String("model", "", "model artifact to load at startup")
	serveCmd.Flags().Bool("allow-heuristic", false, "answer analysis requests with the heuristic when no model is loaded")
	serveCmd.Flags().String("log-file", "", "write logs to this file, reopened on SIGHUP")
	serveCmd.Flags().Bool("metrics", false, "emit request latency metrics")
}

func runServe(cmd *cobra.Command, args []string) error {
	return runWithApp(newAppContext(""), func(ctx context.Context, a *app.EmotionApp) error {
		return a.Serve(ctx)
	})
}
