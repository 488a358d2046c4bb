// Package artifact persists trained models. An artifact is a JSON document holding the forest,
// the scaler and training metadata, stored zstd-compressed.
package artifact

import (
	"fmt"
	"sort"
	"time"

	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
	"github.com/RyanBlaney/audio-emotion/pkg/model"
)

const (
	// CurrentVersion is written to every new artifact
	CurrentVersion = "2.1"

	// LegacyVersion is assumed for documents without a version field
	LegacyVersion = "1.0"

	// ModelTypeRandomForest identifies artifacts holding a RandomForest
	ModelTypeRandomForest = "RandomForestClassifier"

	// ModelTypeUnknown is reported for documents without a model_type field
	ModelTypeUnknown = "Unknown"
)

// supportedVersions lists every document version the loader understands
var supportedVersions = map[string]bool{
	"1.0": true,
	"2.0": true,
	"2.1": true,
}

// Artifact is a trained model together with its scaler and training metadata
type Artifact struct {
	Version                 string                `json:"version"`
	Model                   *model.RandomForest   `json:"model"`
	Scaler                  *model.StandardScaler `json:"scaler"`
	Accuracy                float64               `json:"accuracy"`
	TrainingDataCount       int                   `json:"training_data_count"`
	Emotions                []emotion.Emotion     `json:"emotions"`
	CreatedAt               time.Time             `json:"created_at"`
	ModelType               string                `json:"model_type"`
	FeatureCount            int                   `json:"feature_count"`
	EvaluatedOnTrainingData bool                  `json:"evaluated_on_training_data"`
	FeatureNames            []string              `json:"feature_names,omitempty"`
}

// New wraps a fitted scaler and forest into a current-version artifact
func New(forest *model.RandomForest, scaler *model.StandardScaler, accuracy float64, trainingCount int) *Artifact {
	return &Artifact{
		Version:           CurrentVersion,
		Model:             forest,
		Scaler:            scaler,
		Accuracy:          accuracy,
		TrainingDataCount: trainingCount,
		Emotions:          emotion.All(),
		CreatedAt:         time.Now().UTC(),
		ModelType:         ModelTypeRandomForest,
		FeatureCount:      scaler.NFeatures(),
	}
}

// FeatureImportance is the share of impurity reduction attributed to one feature
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Index      int     `json:"index"`
	Importance float64 `json:"importance"`
}

// TopFeatures returns the n most important features, most important first. Features are named
// from FeatureNames when the artifact carries them.
func (a *Artifact) TopFeatures(n int) []FeatureImportance {
	if a.Model == nil {
		return nil
	}

	importances := a.Model.FeatureImportances()
	out := make([]FeatureImportance, len(importances))
	for i, v := range importances {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(a.FeatureNames) {
			name = a.FeatureNames[i]
		}
		out[i] = FeatureImportance{Feature: name, Index: i, Importance: v}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})

	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Metadata is a display summary of an artifact
type Metadata struct {
	Version                 string    `json:"version"`
	ModelType               string    `json:"model_type"`
	Accuracy                float64   `json:"accuracy"`
	TrainingDataCount       int       `json:"training_data_count"`
	FeatureCount            int       `json:"feature_count"`
	Classes                 []string  `json:"classes"`
	Trees                   int       `json:"trees"`
	EvaluatedOnTrainingData bool      `json:"evaluated_on_training_data"`
	CreatedAt               time.Time `json:"created_at"`
}

// Metadata summarises a for display
func (a *Artifact) Metadata() Metadata {
	m := Metadata{
		Version:                 a.Version,
		ModelType:               a.ModelType,
		Accuracy:                a.Accuracy,
		TrainingDataCount:       a.TrainingDataCount,
		FeatureCount:            a.FeatureCount,
		EvaluatedOnTrainingData: a.EvaluatedOnTrainingData,
		CreatedAt:               a.CreatedAt,
	}
	if a.Model != nil {
		m.Classes = a.Model.Classes()
		m.Trees = len(a.Model.Trees)
	}
	return m
}

// Fields flattens the metadata for tabular output
func (m Metadata) Fields() map[string]any {
	return map[string]any{
		"version":                    m.Version,
		"model_type":                 m.ModelType,
		"accuracy":                   m.Accuracy,
		"training_data_count":        m.TrainingDataCount,
		"feature_count":              m.FeatureCount,
		"classes":                    m.Classes,
		"trees":                      m.Trees,
		"evaluated_on_training_data": m.EvaluatedOnTrainingData,
		"created_at":                 m.CreatedAt.Format(time.RFC3339),
	}
}
