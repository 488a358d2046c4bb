// Package dataset accumulates labelled feature vectors for training.
package dataset

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

// Sample is one labelled feature vector. Samples are immutable once added.
type Sample struct {
	ID        string          `json:"id"`
	Source    string          `json:"source,omitempty"` // File name or upload name
	Vector    []float64       `json:"vector"`
	Emotion   emotion.Emotion `json:"emotion"`
	CreatedAt time.Time       `json:"created_at"`
}

// Accumulator is an in-memory, concurrency-safe sample store
type Accumulator struct {
	mu      sync.RWMutex
	samples []Sample
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add stores a copy of vector under label and returns the new sample
func (a *Accumulator) Add(source string, vector []float64, label emotion.Emotion) Sample {
	v := make([]float64, len(vector))
	copy(v, vector)

	sample := Sample{
		ID:        uuid.NewString(),
		Source:    source,
		Vector:    v,
		Emotion:   label,
		CreatedAt: time.Now().UTC(),
	}

	a.mu.Lock()
	a.samples = append(a.samples, sample)
	a.mu.Unlock()

	return sample.clone()
}

// All returns a snapshot copy of every sample in insertion order
func (a *Accumulator) All() []Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Sample, len(a.samples))
	for i, s := range a.samples {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of samples
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.samples)
}

// Clear removes every sample and returns how many were removed
func (a *Accumulator) Clear() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.samples)
	a.samples = nil
	return n
}

// Counts returns the number of samples per label, including zero counts for absent labels
func (a *Accumulator) Counts() map[emotion.Emotion]int {
	counts := make(map[emotion.Emotion]int, emotion.Count)
	for _, e := range emotion.All() {
		counts[e] = 0
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.samples {
		counts[s.Emotion]++
	}
	return counts
}

func (s Sample) clone() Sample {
	v := make([]float64, len(s.Vector))
	copy(v, s.Vector)
	s.Vector = v
	return s
}
