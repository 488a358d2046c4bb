// Package training fits the scaler and random forest on accumulated samples and evaluates the
// result on a held-out fold.
package training

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/pkg/artifact"
	"github.com/RyanBlaney/audio-emotion/pkg/common"
	"github.com/RyanBlaney/audio-emotion/pkg/dataset"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
	"github.com/RyanBlaney/audio-emotion/pkg/model"
)

// Report describes a training run
type Report struct {
	Accuracy                float64                      `json:"accuracy"`
	TotalSamples            int                          `json:"total_samples"`
	TrainSize               int                          `json:"train_size"`
	TestSize                int                          `json:"test_size"`
	FeatureCount            int                          `json:"feature_count"`
	EvaluatedOnTrainingData bool                         `json:"evaluated_on_training_data"`
	Truncated               bool                         `json:"truncated"`
	DroppedDimensions       int                          `json:"dropped_dimensions,omitempty"`
	PerLabel                []model.LabelMetrics         `json:"per_label"`
	TopFeatures             []artifact.FeatureImportance `json:"top_features"`
	Warnings                []string                     `json:"warnings,omitempty"`
	Duration                time.Duration                `json:"duration"`
}

// Result is a trained artifact and its evaluation report
type Result struct {
	Artifact *artifact.Artifact `json:"-"`
	Report   *Report            `json:"report"`
}

// Engine trains emotion classifiers
type Engine struct {
	config       configs.TrainingConfig
	featureNames []string
	logger       logging.Logger
}

// NewEngine creates a training engine. featureNames labels the vector elements in reports
// and artifacts and may be nil.
func NewEngine(config configs.TrainingConfig, featureNames []string) *Engine {
	return &Engine{
		config:       config,
		featureNames: featureNames,
		logger: logging.WithFields(logging.Fields{
			"component": "training_engine",
		}),
	}
}

// Train fits a model on samples. The samples are never modified. Vectors longer than the
// shortest in the batch are truncated to its length.
func (e *Engine) Train(ctx context.Context, samples []dataset.Sample) (*Result, error) {
	start := time.Now()
	minimum := max(2, e.config.MinSamples)
	if len(samples) < minimum {
		return nil, common.NewError(common.KindInsufficientData, "train",
			fmt.Sprintf("need at least %d samples, have %d", minimum, len(samples)), nil)
	}

	logger := e.logger.WithFields(logging.Fields{
		"function": "Train",
		"samples":  len(samples),
	})

	report := &Report{TotalSamples: len(samples)}

	X, y, width, longest := matrix(samples)
	if width == 0 {
		return nil, common.NewError(common.KindInsufficientData, "train", "samples have empty feature vectors", nil)
	}
	if longest > width {
		report.Truncated = true
		report.DroppedDimensions = longest - width
		msg := fmt.Sprintf("feature vectors have inconsistent lengths; truncated to %d dimensions", width)
		report.Warnings = append(report.Warnings, msg)
		logger.Warn("Truncating feature vectors", logging.Fields{
			"min_length": width,
			"max_length": longest,
		})
	}
	report.FeatureCount = width

	trainIdx, testIdx := e.split(len(samples))
	report.EvaluatedOnTrainingData = len(samples) <= 2
	if report.EvaluatedOnTrainingData {
		report.Warnings = append(report.Warnings, "too few samples for a held-out fold; accuracy is measured on the training data")
	}
	report.TrainSize, report.TestSize = len(trainIdx), len(testIdx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaler, forest, err := e.fit(pick(X, trainIdx), pickLabels(y, trainIdx))
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	yTrue := pickLabels(y, testIdx)
	yPred, err := predict(scaler, forest, pick(X, testIdx))
	if err != nil {
		return nil, err
	}
	report.Accuracy = model.Accuracy(yTrue, yPred)
	report.PerLabel = model.ClassificationReport(yTrue, yPred, presentLabels(y))

	a := artifact.New(forest, scaler, report.Accuracy, len(samples))
	a.EvaluatedOnTrainingData = report.EvaluatedOnTrainingData
	a.FeatureNames = e.names(width)
	report.TopFeatures = a.TopFeatures(e.config.ImportanceTopN)
	report.Duration = time.Since(start)

	logger.Info("Training completed", logging.Fields{
		"accuracy":      report.Accuracy,
		"train_size":    report.TrainSize,
		"test_size":     report.TestSize,
		"feature_count": width,
		"duration_ms":   report.Duration.Milliseconds(),
	})

	return &Result{Artifact: a, Report: report}, nil
}

// split returns train and evaluation indices. With more than two samples a seeded shuffle
// holds out ceil(TestFraction*n) of them; otherwise both folds are the whole batch.
func (e *Engine) split(n int) (train, test []int) {
	if n <= 2 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, all
	}

	fraction := e.config.TestFraction
	if fraction <= 0 || fraction >= 1 {
		fraction = configs.GetDefaultTrainingConfig().TestFraction
	}
	nTest := int(math.Ceil(fraction*float64(n) - 1e-9))
	nTest = max(1, min(nTest, n-1))

	perm := rand.New(rand.NewPCG(e.config.Seed, 0)).Perm(n)
	return perm[nTest:], perm[:nTest]
}

// fit trains the scaler and forest, reporting any panic from the classifier as a failure
func (e *Engine) fit(X [][]float64, y []string) (scaler *model.StandardScaler, forest *model.RandomForest, err error) {
	defer func() {
		if r := recover(); r != nil {
			scaler, forest = nil, nil
			err = common.NewError(common.KindClassifierFailure, "train", fmt.Sprintf("classifier panicked: %v", r), nil)
		}
	}()

	scaler = model.NewStandardScaler()
	if err := scaler.Fit(X); err != nil {
		return nil, nil, common.NewError(common.KindClassifierFailure, "train", "failed to fit scaler", err)
	}
	scaled, err := scaler.TransformAll(X)
	if err != nil {
		return nil, nil, common.NewError(common.KindClassifierFailure, "train", "failed to scale training data", err)
	}

	forest = model.NewRandomForest(model.ForestConfig{
		NEstimators:     e.config.Estimators,
		MaxDepth:        e.config.MaxDepth,
		MinSamplesSplit: e.config.MinSamplesSplit,
		Seed:            e.config.Seed,
		Workers:         e.config.Workers,
	})
	if err := forest.Fit(scaled, y); err != nil {
		return nil, nil, common.NewError(common.KindClassifierFailure, "train", "failed to fit random forest", err)
	}
	return scaler, forest, nil
}

func (e *Engine) names(width int) []string {
	if len(e.featureNames) >= width {
		names := make([]string, width)
		copy(names, e.featureNames)
		return names
	}
	names := make([]string, width)
	for i := range names {
		names[i] = fmt.Sprintf("feature_%d", i)
	}
	return names
}

func predict(scaler *model.StandardScaler, forest *model.RandomForest, X [][]float64) ([]string, error) {
	out := make([]string, len(X))
	for i, row := range X {
		scaled, err := scaler.Transform(row)
		if err != nil {
			return nil, common.NewError(common.KindClassifierFailure, "train", "failed to scale evaluation data", err)
		}
		label, err := forest.Predict(scaled)
		if err != nil {
			return nil, common.NewError(common.KindClassifierFailure, "train", "failed to evaluate model", err)
		}
		out[i] = label
	}
	return out, nil
}

// matrix copies the sample vectors truncated to the shortest length
func matrix(samples []dataset.Sample) (X [][]float64, y []string, width, longest int) {
	width = len(samples[0].Vector)
	for _, s := range samples {
		width = min(width, len(s.Vector))
		longest = max(longest, len(s.Vector))
	}

	X = make([][]float64, len(samples))
	y = make([]string, len(samples))
	for i, s := range samples {
		row := make([]float64, width)
		copy(row, s.Vector[:width])
		X[i] = row
		y[i] = string(s.Emotion)
	}
	return X, y, width, longest
}

func pick(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func pickLabels(y []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// presentLabels returns the labels that occur in y, in canonical order
func presentLabels(y []string) []string {
	seen := make(map[string]bool, len(y))
	for _, label := range y {
		seen[label] = true
	}
	var out []string
	for _, e := range emotion.Names() {
		if seen[e] {
			out = append(out, e)
		}
	}
	return out
}
