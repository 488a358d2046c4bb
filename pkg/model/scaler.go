package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each feature on its training mean and divides by its population
// standard deviation. Columns with zero variance keep a scale of 1.
type StandardScaler struct {
	Mean        []float64 `json:"mean"`
	Scale       []float64 `json:"scale"`
	NFeaturesIn int       `json:"n_features_in"`
}

// NewStandardScaler creates an unfitted scaler
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit learns per-column mean and scale from X. Every row must have the same length.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("cannot fit scaler on an empty matrix")
	}
	n := len(X[0])
	if n == 0 {
		return fmt.Errorf("cannot fit scaler on zero-width rows")
	}

	mean := make([]float64, n)
	scale := make([]float64, n)
	column := make([]float64, len(X))
	for j := 0; j < n; j++ {
		for i, row := range X {
			if len(row) != n {
				return fmt.Errorf("row %d has %d features, expected %d", i, len(row), n)
			}
			column[i] = row[j]
		}
		m, variance := stat.PopMeanVariance(column, nil)
		mean[j] = m
		scale[j] = math.Sqrt(variance)
		if scale[j] == 0 || math.IsNaN(scale[j]) {
			scale[j] = 1
		}
	}

	s.Mean, s.Scale, s.NFeaturesIn = mean, scale, n
	return nil
}

// NFeatures returns the vector length the scaler was fitted on
func (s *StandardScaler) NFeatures() int {
	return s.NFeaturesIn
}

// Transform scales a single vector
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != s.NFeaturesIn {
		return nil, fmt.Errorf("vector has %d features, scaler expects %d", len(x), s.NFeaturesIn)
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformAll scales every row of X
func (s *StandardScaler) TransformAll(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Validate checks that a deserialised scaler is internally consistent
func (s *StandardScaler) Validate() error {
	if s.NFeaturesIn <= 0 {
		return fmt.Errorf("scaler has no features")
	}
	if len(s.Mean) != s.NFeaturesIn || len(s.Scale) != s.NFeaturesIn {
		return fmt.Errorf("scaler parameters do not match %d features", s.NFeaturesIn)
	}
	for j, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scaler column %d has invalid scale %v", j, v)
		}
	}
	return nil
}
