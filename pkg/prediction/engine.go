// Package prediction turns feature vectors into emotion probability distributions, either from a
// trained artifact or, when no model is available, from a deterministic feature heuristic.
package prediction

import (
	"fmt"
	"math/rand/v2"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/pkg/artifact"
	"github.com/RyanBlaney/audio-emotion/pkg/audio/extractors"
	"github.com/RyanBlaney/audio-emotion/pkg/common"
	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

// Epsilon is the smallest probability any label is assigned
const Epsilon = 1e-6

// Provenance records which path produced a prediction
type Provenance string

const (
	ProvenanceTrained   Provenance = "trained"
	ProvenanceHeuristic Provenance = "heuristic"
)

// Input carries the features of one clip. When both are set the trained path uses Vector and
// the heuristic uses Features.
type Input struct {
	Features *extractors.FeatureSet
	Vector   []float64
}

// PredictionResult is a probability distribution over the fixed label set
type PredictionResult struct {
	Emotion       emotion.Emotion             `json:"emotion"`
	Confidence    float64                     `json:"confidence"`
	Probabilities map[emotion.Emotion]float64 `json:"probabilities"`
	Features      map[string]float64          `json:"features,omitempty"`
	Provenance    Provenance                  `json:"model_used"`
}

// Distribution returns the probabilities in the fixed label order
func (r *PredictionResult) Distribution() []float64 {
	out := make([]float64, emotion.Count)
	for i, e := range emotion.All() {
		out[i] = r.Probabilities[e]
	}
	return out
}

// Engine predicts emotions
type Engine struct {
	config     configs.HeuristicConfig
	vectorizer *extractors.Vectorizer
	logger     logging.Logger
}

// NewEngine creates a prediction engine. The vectorizer converts between feature sets and
// vectors when an input carries only one of them.
func NewEngine(config configs.HeuristicConfig, vectorizer *extractors.Vectorizer) *Engine {
	return &Engine{
		config:     config,
		vectorizer: vectorizer,
		logger: logging.WithFields(logging.Fields{
			"component": "prediction_engine",
		}),
	}
}

// Predict classifies input with a, or with the heuristic when a is nil
func (e *Engine) Predict(input Input, a *artifact.Artifact) (*PredictionResult, error) {
	var (
		probs      []float64
		provenance Provenance
		err        error
	)
	if a != nil {
		probs, err = e.predictTrained(input, a)
		provenance = ProvenanceTrained
	} else {
		probs, err = e.predictHeuristic(input)
		provenance = ProvenanceHeuristic
	}
	if err != nil {
		return nil, err
	}

	result := newResult(smooth(probs), provenance)
	if input.Features != nil {
		result.Features = input.Features.Summary()
	} else if fs, err := e.vectorizer.Unflatten(input.Vector); err == nil {
		result.Features = fs.Summary()
	}

	e.logger.Debug("Emotion predicted", logging.Fields{
		"emotion":    result.Emotion,
		"confidence": result.Confidence,
		"model_used": provenance,
	})
	return result, nil
}

func (e *Engine) predictTrained(input Input, a *artifact.Artifact) (probs []float64, err error) {
	if a.Model == nil || a.Scaler == nil {
		return nil, common.NewError(common.KindIncompatibleArtifact, "predict", "artifact has no model", nil)
	}

	vector := input.Vector
	if vector == nil && input.Features != nil {
		vector = e.vectorizer.Vectorize(input.Features)
	}
	if len(vector) != a.Scaler.NFeatures() {
		return nil, common.NewError(common.KindDimensionMismatch, "predict",
			fmt.Sprintf("vector has %d features, model expects %d", len(vector), a.Scaler.NFeatures()), nil)
	}

	defer func() {
		if r := recover(); r != nil {
			probs = nil
			err = common.NewError(common.KindClassifierFailure, "predict", fmt.Sprintf("classifier panicked: %v", r), nil)
		}
	}()

	scaled, err := a.Scaler.Transform(vector)
	if err != nil {
		return nil, common.NewError(common.KindClassifierFailure, "predict", "failed to scale features", err)
	}
	raw, err := a.Model.PredictProba(scaled)
	if err != nil {
		return nil, common.NewError(common.KindClassifierFailure, "predict", "classifier failed", err)
	}

	// classes are mapped by name: the forest orders them alphabetically and may have seen
	// only some labels
	probs = make([]float64, emotion.Count)
	for i, class := range a.Model.Classes() {
		idx := emotion.Index(emotion.Emotion(class))
		if idx < 0 {
			return nil, common.NewError(common.KindIncompatibleArtifact, "predict",
				fmt.Sprintf("model class %q is not a known emotion", class), nil)
		}
		probs[idx] = raw[i]
	}
	if total := floats.Sum(probs); total > 0 {
		floats.Scale(1/total, probs)
	} else {
		for i := range probs {
			probs[i] = 1 / float64(emotion.Count)
		}
	}
	return probs, nil
}

func (e *Engine) predictHeuristic(input Input) ([]float64, error) {
	fs := input.Features
	if fs == nil {
		var err error
		if fs, err = e.vectorizer.Unflatten(input.Vector); err != nil {
			return nil, common.NewError(common.KindDimensionMismatch, "predict", "cannot read features from vector", err)
		}
	}

	seed := xxhash.Sum64String(fs.Canonical())
	src := rand.NewPCG(seed, 0)

	uniformAlpha := func(n int) []float64 {
		alpha := make([]float64, n)
		for i := range alpha {
			alpha[i] = 1
		}
		return alpha
	}

	probs := distmv.NewDirichlet(uniformAlpha(emotion.Count), src).Rand(nil)

	boost := func(label emotion.Emotion, factor float64) {
		probs[emotion.Index(label)] *= factor
	}
	if fs.SpectralCentroid > e.config.CentroidThreshold {
		boost(emotion.Happy, 1.5)
		boost(emotion.Surprised, 1.3)
	}
	if fs.RMSEnergy > e.config.EnergyThreshold {
		boost(emotion.Happy, 1.4)
		boost(emotion.Angry, 1.4)
	} else {
		boost(emotion.Sad, 1.5)
		boost(emotion.Neutral, 1.3)
	}
	if fs.Tempo > e.config.FastTempo {
		boost(emotion.Happy, 1.3)
		boost(emotion.Surprised, 1.2)
	} else if fs.Tempo < e.config.SlowTempo {
		boost(emotion.Sad, 1.4)
	}

	noise := distuv.Normal{Mu: 0, Sigma: e.config.NoiseSigma, Src: src}
	for i := range probs {
		probs[i] = max(probs[i]+noise.Rand(), e.config.ProbabilityFloor)
	}
	floats.Scale(1/floats.Sum(probs), probs)

	top := floats.MaxIdx(probs)
	if probs[top] < e.config.MinConfidence {
		confidence := distuv.Uniform{Min: e.config.MinConfidence, Max: e.config.MaxConfidence, Src: src}.Rand()
		rest := distmv.NewDirichlet(uniformAlpha(emotion.Count-1), src).Rand(nil)

		probs[top] = confidence
		k := 0
		for i := range probs {
			if i != top {
				probs[i] = rest[k] * (1 - confidence)
				k++
			}
		}
	}
	return probs, nil
}

// smooth lifts every probability to at least Epsilon with an affine map that keeps the sum at 1
// and the ranking unchanged
func smooth(probs []float64) []float64 {
	n := float64(len(probs))
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = (1-n*Epsilon)*p + Epsilon
	}
	return out
}

func newResult(probs []float64, provenance Provenance) *PredictionResult {
	labels := emotion.All()
	top := floats.MaxIdx(probs)

	dist := make(map[emotion.Emotion]float64, len(labels))
	for i, label := range labels {
		dist[label] = probs[i]
	}
	return &PredictionResult{
		Emotion:       labels[top],
		Confidence:    probs[top],
		Probabilities: dist,
		Provenance:    provenance,
	}
}
