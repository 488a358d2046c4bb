// Package model holds the feature scaler and the random forest classifier, both JSON
// serialisable so a trained pair can be stored in an artifact and restored exactly.
package model

// Transformer maps raw feature vectors into the space a classifier was trained in
type Transformer interface {
	Transform(x []float64) ([]float64, error)
	NFeatures() int
}

// Classifier predicts class membership probabilities for scaled feature vectors.
// PredictProba returns one probability per entry of Classes, in the same order.
type Classifier interface {
	PredictProba(x []float64) ([]float64, error)
	Classes() []string
}

var (
	_ Transformer = (*StandardScaler)(nil)
	_ Classifier  = (*RandomForest)(nil)
)
