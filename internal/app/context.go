package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/tunein/go-logging/v7/pkg/logger"
	"github.com/tunein/go-logging/v7/pkg/logger/logtypes"
	"github.com/tunein/go-logging/v7/pkg/rootlogger"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/internal/server"
	"github.com/RyanBlaney/audio-emotion/internal/session"
	"github.com/RyanBlaney/audio-emotion/pkg/artifact"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	OutputFile   string
	OutputFormat string
	ModelPath    string
	Verbose      bool

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// EmotionApp runs the CLI commands against one session controller
type EmotionApp struct {
	ctx        *Context
	config     *configs.Config
	controller *session.Controller
	logger     logging.Logger
}

// NewEmotionApp creates the application. When the context has no configuration it is loaded
// from the global viper instance.
func NewEmotionApp(ctx *Context) (*EmotionApp, error) {
	if ctx.Config == nil {
		config, err := configs.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		ctx.Config = config
	}
	if ctx.ModelPath == "" {
		ctx.ModelPath = ctx.Config.Model.Path
	}
	if ctx.OutputFormat == "" {
		ctx.OutputFormat = ctx.Config.OutputFormat
	}

	ctx.Logger = setupLogging(ctx)

	controller, err := session.NewController(ctx.Config)
	if err != nil {
		return nil, err
	}

	ctx.Logger.Debug("Emotion application initialized", logging.Fields{
		"output_format": ctx.OutputFormat,
		"model_path":    ctx.ModelPath,
		"sample_rate":   ctx.Config.Audio.SampleRate,
	})

	return &EmotionApp{
		ctx:        ctx,
		config:     ctx.Config,
		controller: controller,
		logger:     ctx.Logger,
	}, nil
}

// Controller exposes the session controller
func (app *EmotionApp) Controller() *session.Controller {
	return app.controller
}

// Extract prints the feature summary of every file
func (app *EmotionApp) Extract(ctx context.Context, files []string) error {
	results := make([]map[string]any, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
		ext, err := app.controller.Extract(ctx, data, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, map[string]any{
			"file":        path,
			"duration":    ext.Signal.Duration.Seconds(),
			"sample_rate": ext.Signal.SampleRate,
			"truncated":   ext.Signal.Truncated,
			"features":    ext.Features.Summary(),
			"vector":      ext.Vector,
		})
	}
	return app.output(map[string]any{"extractions": results})
}

// Predict classifies one file, with the model from the context when one is configured
func (app *EmotionApp) Predict(ctx context.Context, path string) error {
	if app.ctx.ModelPath != "" {
		if _, err := app.controller.LoadModel(app.ctx.ModelPath); err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
	} else {
		app.logger.Warn("No model configured, using the heuristic predictor")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}
	result, err := app.controller.Predict(ctx, data, path)
	if err != nil {
		return err
	}
	return app.output(map[string]any{
		"file":          path,
		"emotion":       result.Emotion,
		"confidence":    result.Confidence,
		"model_used":    result.Provenance,
		"probabilities": result.Probabilities,
		"features":      result.Features,
	})
}

// Train extracts the items, fits a model and writes it to out
func (app *EmotionApp) Train(ctx context.Context, items []session.BatchItem, out string) error {
	batch, err := app.addBatch(ctx, items)
	if err != nil {
		return err
	}

	result, err := app.controller.Train(ctx)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	for _, w := range result.Report.Warnings {
		app.logger.Warn(w)
	}

	if err := app.controller.SaveModel(out); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	app.logger.Info("Model saved", logging.Fields{
		"path":     out,
		"accuracy": result.Report.Accuracy,
		"samples":  result.Report.TotalSamples,
	})

	return app.output(map[string]any{
		"model":    out,
		"report":   result.Report,
		"metadata": result.Artifact.Metadata(),
		"failed":   batch.Failed,
	})
}

// DatasetReport extracts the items and scores the resulting dataset without training
func (app *EmotionApp) DatasetReport(ctx context.Context, items []session.BatchItem) error {
	batch, err := app.addBatch(ctx, items)
	if err != nil {
		return err
	}
	return app.output(map[string]any{
		"report": app.controller.DatasetReport(),
		"failed": batch.Failed,
	})
}

// InspectModel prints the metadata and most important features of an artifact
func (app *EmotionApp) InspectModel(path string, top int) error {
	a, err := artifact.Load(path)
	if err != nil {
		return err
	}
	return app.output(map[string]any{
		"artifact":     filepath.Base(path),
		"metadata":     a.Metadata().Fields(),
		"top_features": a.TopFeatures(top),
	})
}

// Serve runs the HTTP API until ctx is cancelled
func (app *EmotionApp) Serve(ctx context.Context) error {
	if file := app.config.Logging.File; file != "" {
		if err := configureRootLogger(file); err != nil {
			return err
		}
	}

	if app.ctx.ModelPath != "" {
		if _, err := app.controller.LoadModel(app.ctx.ModelPath); err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
	} else if !app.config.Server.AllowHeuristic {
		app.logger.Warn("Serving without a model; analysis requests fail until one is trained or uploaded")
	}

	return server.New(app.config, app.controller).Run(ctx)
}

func (app *EmotionApp) addBatch(ctx context.Context, items []session.BatchItem) (*session.BatchResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no labelled audio files found")
	}
	batch, err := app.controller.AddBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	if batch.Err != nil {
		app.logger.Warn("Some files were skipped", logging.Fields{
			"skipped": len(batch.Failed),
			"error":   batch.Err.Error(),
		})
	}
	return batch, nil
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	logging.SetLevel(resolveLogLevel(ctx.Verbose, ctx.Config.LogLevel))
	return logging.WithFields(logging.Fields{
		"component": "emotion_app",
	})
}

// resolveLogLevel maps the --log-level name onto a logging level. Verbose always wins, and an
// empty or unknown name means info.
func resolveLogLevel(verbose bool, name string) logging.Level {
	if verbose {
		return logging.DebugLevel
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return logging.DebugLevel
	case "warn", "warning":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}

// configureRootLogger sends the root log writer to file and reopens it on SIGHUP
func configureRootLogger(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if err := rootlogger.Configure(logger.LogOptions{
		Out:          file,
		ReopenSignal: syscall.SIGHUP,
		Level:        logtypes.InfoLevel,
	}); err != nil {
		return fmt.Errorf("failed configuring log writer: %w", err)
	}
	return nil
}
