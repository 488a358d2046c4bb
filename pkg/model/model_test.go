package model

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestStandardScaler(t *testing.T) {
	s := NewStandardScaler()
	require.NoError(t, s.Fit([][]float64{
		{1, 10, 5},
		{3, 20, 5},
	}))

	assert.Equal(t, 3, s.NFeatures())
	assert.Equal(t, []float64{2, 15, 5}, s.Mean)
	// population std; the constant column keeps scale 1
	assert.Equal(t, []float64{1, 5, 1}, s.Scale)

	out, err := s.Transform([]float64{3, 10, 7})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 2}, out)

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)
	assert.NoError(t, s.Validate())

	assert.Error(t, NewStandardScaler().Fit(nil))
	assert.Error(t, NewStandardScaler().Fit([][]float64{{1, 2}, {1}}))
}

// blobs returns well separated clusters, one per label; feature 0 carries the class signal and
// the remaining features are noise
func blobs(labels []string, perClass, nFeatures int, seed uint64) ([][]float64, []string) {
	rng := rand.New(rand.NewPCG(seed, 0))
	var X [][]float64
	var y []string
	for c, label := range labels {
		for i := 0; i < perClass; i++ {
			row := make([]float64, nFeatures)
			row[0] = float64(c)*10 + rng.Float64()
			for j := 1; j < nFeatures; j++ {
				row[j] = rng.Float64()
			}
			X = append(X, row)
			y = append(y, label)
		}
	}
	return X, y
}

func TestRandomForestSeparatesClusters(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	labels := []string{"Sad", "Happy", "Angry"}
	X, y := blobs(labels, 10, 6, 1)

	config := DefaultForestConfig()
	config.MaxFeatures = 6
	rf := NewRandomForest(config)
	require.NoError(t, rf.Fit(X, y))

	assert.Equal(t, []string{"Angry", "Happy", "Sad"}, rf.Classes())
	assert.Len(t, rf.Trees, 100)
	assert.NoError(t, rf.Validate())

	pred := make([]string, len(X))
	for i, row := range X {
		p, err := rf.Predict(row)
		require.NoError(t, err)
		pred[i] = p

		proba, err := rf.PredictProba(row)
		require.NoError(t, err)
		sum := 0.0
		for _, v := range proba {
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-9)
	}
	assert.Equal(t, 1.0, Accuracy(y, pred))

	importances := rf.FeatureImportances()
	require.Len(t, importances, 6)
	total := 0.0
	for _, v := range importances {
		total += v
	}
	assert.InDelta(t, 1, total, 1e-9)
	for j := 1; j < 6; j++ {
		assert.Greater(t, importances[0], importances[j], "feature 0 carries the class signal")
	}

	_, err := rf.PredictProba([]float64{1, 2})
	assert.Error(t, err)
}

func TestRandomForestIsDeterministic(t *testing.T) {
	X, y := blobs([]string{"Neutral", "Fear"}, 8, 30, 2)

	fit := func(workers int) []byte {
		config := DefaultForestConfig()
		config.Workers = workers
		rf := NewRandomForest(config)
		require.NoError(t, rf.Fit(X, y))
		data, err := json.Marshal(rf)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, fit(1), fit(1))
	assert.Equal(t, fit(1), fit(8))
}

func TestRandomForestJSONRoundTrip(t *testing.T) {
	X, y := blobs([]string{"Happy", "Sad"}, 6, 5, 3)
	rf := NewRandomForest(DefaultForestConfig())
	require.NoError(t, rf.Fit(X, y))

	data, err := json.Marshal(rf)
	require.NoError(t, err)

	var restored RandomForest
	require.NoError(t, json.Unmarshal(data, &restored))
	require.NoError(t, restored.Validate())

	for _, row := range X {
		want, err := rf.PredictProba(row)
		require.NoError(t, err)
		got, err := restored.PredictProba(row)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRandomForestTwoSamples(t *testing.T) {
	X := [][]float64{{0, 1}, {1, 0}}
	y := []string{"Happy", "Sad"}
	rf := NewRandomForest(DefaultForestConfig())
	require.NoError(t, rf.Fit(X, y))

	for i, row := range X {
		p, err := rf.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, y[i], p)
	}
}

func TestRandomForestConstantFeaturesGivePriors(t *testing.T) {
	X := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	y := []string{"Happy", "Happy", "Happy", "Sad"}
	config := DefaultForestConfig()
	config.NEstimators = 10
	rf := NewRandomForest(config)
	require.NoError(t, rf.Fit(X, y))

	for _, tree := range rf.Trees {
		assert.Len(t, tree.Nodes, 1)
	}
	proba, err := rf.PredictProba([]float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, proba[0]+proba[1], 1e-9)
	assert.Equal(t, make([]float64, 2), rf.FeatureImportances())
}

func TestRandomForestFitErrors(t *testing.T) {
	rf := NewRandomForest(DefaultForestConfig())
	assert.Error(t, rf.Fit(nil, nil))
	assert.Error(t, rf.Fit([][]float64{{1}}, []string{"a", "b"}))
	assert.Error(t, rf.Fit([][]float64{{1, 2}, {1}}, []string{"a", "b"}))

	var empty RandomForest
	assert.Error(t, empty.Validate())
	_, err := empty.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestValidateRejectsBrokenTrees(t *testing.T) {
	rf := &RandomForest{
		ClassNames:  []string{"Happy"},
		NFeaturesIn: 1,
		Trees:       []Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 0}}}},
	}
	assert.Error(t, rf.Validate())

	rf.Trees = []Tree{{Nodes: []Node{{Feature: -1, Value: []float64{0.5, 0.5}}}}}
	assert.Error(t, rf.Validate())

	rf.Trees = []Tree{{Nodes: []Node{{Feature: -1, Value: []float64{1}}}}}
	assert.NoError(t, rf.Validate())
}

func TestMetrics(t *testing.T) {
	yTrue := []string{"Happy", "Happy", "Sad", "Sad"}
	yPred := []string{"Happy", "Sad", "Sad", "Sad"}

	assert.Equal(t, 0.75, Accuracy(yTrue, yPred))
	assert.Zero(t, Accuracy(nil, nil))

	report := ClassificationReport(yTrue, yPred, []string{"Happy", "Sad", "Angry"})
	require.Len(t, report, 3)

	assert.Equal(t, 1.0, report[0].Precision)
	assert.Equal(t, 0.5, report[0].Recall)
	assert.InDelta(t, 2.0/3, report[0].F1, 1e-12)
	assert.Equal(t, 2, report[0].Support)

	assert.InDelta(t, 2.0/3, report[1].Precision, 1e-12)
	assert.Equal(t, 1.0, report[1].Recall)

	assert.Equal(t, LabelMetrics{Label: "Angry"}, report[2])
	assert.False(t, math.IsNaN(report[2].F1))
}
