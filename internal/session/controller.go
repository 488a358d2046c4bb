// Package session holds the state shared by every front end: the active model and the training
// dataset, together with the engines that operate on them.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/pkg/artifact"
	"github.com/RyanBlaney/audio-emotion/pkg/audio/extractors"
	"github.com/RyanBlaney/audio-emotion/pkg/dataset"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
	"github.com/RyanBlaney/audio-emotion/pkg/prediction"
	"github.com/RyanBlaney/audio-emotion/pkg/training"
)

// ErrNoModel is returned when an operation needs a trained model and none is active
var ErrNoModel = errors.New("no trained model is loaded")

// Controller owns the active model and the dataset. The model is swapped as a whole, so a
// prediction always sees one consistent artifact.
type Controller struct {
	config    *configs.Config
	extractor *extractors.EmotionFeatureExtractor
	dataset   *dataset.Accumulator
	trainer   *training.Engine
	predictor *prediction.Engine
	active    atomic.Pointer[artifact.Artifact]
	logger    logging.Logger
}

// NewController creates a controller with an empty dataset and no active model
func NewController(config *configs.Config) (*Controller, error) {
	extractor, err := extractors.NewEmotionFeatureExtractor(config.Audio, config.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	layout := extractor.Vectorizer().Layout()
	return &Controller{
		config:    config,
		extractor: extractor,
		dataset:   dataset.NewAccumulator(),
		trainer:   training.NewEngine(config.Training, layout.FeatureNames()),
		predictor: prediction.NewEngine(config.Heuristic, extractor.Vectorizer()),
		logger: logging.WithFields(logging.Fields{
			"component": "session_controller",
		}),
	}, nil
}

// Extractor returns the feature extractor shared by every operation
func (c *Controller) Extractor() *extractors.EmotionFeatureExtractor {
	return c.extractor
}

// Extract analyses one clip without touching the session state
func (c *Controller) Extract(ctx context.Context, data []byte, formatHint string) (*extractors.Extraction, error) {
	return c.extractor.Extract(ctx, data, formatHint)
}

// AddSample extracts the features of data and stores them under label
func (c *Controller) AddSample(ctx context.Context, source string, data []byte, label emotion.Emotion) (*dataset.Sample, error) {
	if !label.Valid() {
		return nil, fmt.Errorf("unknown emotion %q", label)
	}

	ext, err := c.extractor.Extract(ctx, data, source)
	if err != nil {
		return nil, err
	}

	sample := c.dataset.Add(source, ext.Vector, label)
	c.logger.Debug("Sample added", logging.Fields{
		"source":  source,
		"emotion": label,
		"total":   c.dataset.Len(),
	})
	return &sample, nil
}

// BatchItem is one file of a batch upload. Data is read from Path when it is nil.
type BatchItem struct {
	Source  string
	Path    string
	Data    []byte
	Emotion emotion.Emotion
}

// BatchFailure records why one batch item was skipped
type BatchFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// BatchResult reports the outcome of a batch. Err combines every per-item failure.
type BatchResult struct {
	Added  []dataset.Sample `json:"added"`
	Failed []BatchFailure   `json:"failed,omitempty"`
	Err    error            `json:"-"`
}

// AddBatch extracts items concurrently and adds the successful ones in input order. A failing
// item is reported in the result and does not stop the rest of the batch; only cancellation of
// ctx aborts it.
func (c *Controller) AddBatch(ctx context.Context, items []BatchItem) (*BatchResult, error) {
	vectors := make([][]float64, len(items))
	failures := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.config.Training.Workers))
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := c.extractItem(gctx, item)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for i, item := range items {
		source := item.source()
		if failures[i] != nil {
			result.Failed = append(result.Failed, BatchFailure{Source: source, Error: failures[i].Error()})
			result.Err = multierr.Append(result.Err, fmt.Errorf("%s: %w", source, failures[i]))
			continue
		}
		result.Added = append(result.Added, c.dataset.Add(source, vectors[i], item.Emotion))
	}

	c.logger.Info("Batch processed", logging.Fields{
		"added":  len(result.Added),
		"failed": len(result.Failed),
		"total":  c.dataset.Len(),
	})
	return result, nil
}

func (c *Controller) extractItem(ctx context.Context, item BatchItem) ([]float64, error) {
	if !item.Emotion.Valid() {
		return nil, fmt.Errorf("unknown emotion %q", item.Emotion)
	}
	data := item.Data
	if data == nil {
		var err error
		if data, err = os.ReadFile(item.Path); err != nil {
			return nil, fmt.Errorf("failed to read audio file: %w", err)
		}
	}
	ext, err := c.extractor.Extract(ctx, data, item.source())
	if err != nil {
		return nil, err
	}
	return ext.Vector, nil
}

func (i BatchItem) source() string {
	if i.Source != "" {
		return i.Source
	}
	return filepath.Base(i.Path)
}

// Train fits a model on a snapshot of the dataset and activates it on success. The previous
// model stays active if training fails.
func (c *Controller) Train(ctx context.Context) (*training.Result, error) {
	result, err := c.trainer.Train(ctx, c.dataset.All())
	if err != nil {
		return nil, err
	}
	c.active.Store(result.Artifact)
	return result, nil
}

// Predict analyses data with the active model, or with the heuristic when none is loaded
func (c *Controller) Predict(ctx context.Context, data []byte, formatHint string) (*prediction.PredictionResult, error) {
	ext, err := c.extractor.Extract(ctx, data, formatHint)
	if err != nil {
		return nil, err
	}
	return c.PredictFeatures(ext)
}

// PredictFeatures classifies an existing extraction
func (c *Controller) PredictFeatures(ext *extractors.Extraction) (*prediction.PredictionResult, error) {
	return c.predictor.Predict(prediction.Input{Features: ext.Features, Vector: ext.Vector}, c.active.Load())
}

// ActiveModel returns the active artifact, or nil
func (c *Controller) ActiveModel() *artifact.Artifact {
	return c.active.Load()
}

// SetModel activates a, replacing any previous model
func (c *Controller) SetModel(a *artifact.Artifact) {
	c.active.Store(a)
}

// LoadModel reads an artifact from path and activates it
func (c *Controller) LoadModel(path string) (*artifact.Artifact, error) {
	a, err := artifact.Load(path)
	if err != nil {
		return nil, err
	}
	c.activate(a, path)
	return a, nil
}

// ImportModel decodes an artifact document and activates it
func (c *Controller) ImportModel(data []byte) (*artifact.Artifact, error) {
	a, err := artifact.Deserialize(data)
	if err != nil {
		return nil, err
	}
	c.activate(a, "upload")
	return a, nil
}

// ExportModel serialises the active model
func (c *Controller) ExportModel() ([]byte, error) {
	a := c.active.Load()
	if a == nil {
		return nil, ErrNoModel
	}
	return artifact.Serialize(a)
}

// SaveModel writes the active model to path
func (c *Controller) SaveModel(path string) error {
	a := c.active.Load()
	if a == nil {
		return ErrNoModel
	}
	return artifact.Save(path, a)
}

// Samples returns a snapshot of the dataset
func (c *Controller) Samples() []dataset.Sample {
	return c.dataset.All()
}

// ClearDataset removes every sample and returns how many were removed
func (c *Controller) ClearDataset() int {
	return c.dataset.Clear()
}

// DatasetReport scores the current dataset
func (c *Controller) DatasetReport() *dataset.QualityReport {
	return c.dataset.Report(c.config.Training.MinSamples)
}

func (c *Controller) activate(a *artifact.Artifact, source string) {
	c.active.Store(a)
	c.logger.Info("Model activated", logging.Fields{
		"source":   source,
		"version":  a.Version,
		"accuracy": a.Accuracy,
		"features": a.FeatureCount,
	})
}
