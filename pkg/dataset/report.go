package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/audio-emotion/pkg/emotion"
)

// targetSamples is the dataset size at which the size score saturates
const targetSamples = 100

// QualityReport describes how usable a dataset is for training
type QualityReport struct {
	TotalSamples       int                     `json:"total_samples"`
	Distribution       map[emotion.Emotion]int `json:"distribution"`
	LabelsPresent      int                     `json:"labels_present"`
	BalanceScore       float64                 `json:"balance_score"`
	SizeScore          float64                 `json:"size_score"`
	OverallQuality     float64                 `json:"overall_quality"`
	ReadyForTraining   bool                    `json:"ready_for_training"`
	MinimumSamples     int                     `json:"minimum_samples"`
	Recommendations    []string                `json:"recommendations"`
	MissingEmotions    []emotion.Emotion       `json:"missing_emotions,omitempty"`
	UnderrepresentedBy map[emotion.Emotion]int `json:"underrepresented_by,omitempty"` // Samples short of the largest class
}

// Report scores the class balance and size of the accumulated samples
func (a *Accumulator) Report(minimumSamples int) *QualityReport {
	return NewQualityReport(a.Counts(), minimumSamples)
}

// NewQualityReport builds a report from per-label counts. The balance score is
// 1 - std/mean over the labels that have samples, clamped to [0, 1]; the size score is
// n/100 capped at 1; overall quality is their mean.
func NewQualityReport(counts map[emotion.Emotion]int, minimumSamples int) *QualityReport {
	minimumSamples = max(2, minimumSamples)

	r := &QualityReport{
		Distribution:   make(map[emotion.Emotion]int, emotion.Count),
		MinimumSamples: minimumSamples,
	}

	var present []float64
	for _, e := range emotion.All() {
		n := counts[e]
		r.Distribution[e] = n
		r.TotalSamples += n
		if n > 0 {
			present = append(present, float64(n))
		} else {
			r.MissingEmotions = append(r.MissingEmotions, e)
		}
	}
	r.LabelsPresent = len(present)

	if len(present) > 0 {
		// sample standard deviation; a single label is perfectly balanced
		r.BalanceScore = 1
		if len(present) > 1 {
			mean, variance := stat.MeanVariance(present, nil)
			r.BalanceScore = clamp(1-math.Sqrt(variance)/mean, 0, 1)
		}

		largest := 0.0
		for _, n := range present {
			largest = max(largest, n)
		}
		for _, e := range emotion.All() {
			if n := counts[e]; n > 0 && float64(n) < largest/2 {
				if r.UnderrepresentedBy == nil {
					r.UnderrepresentedBy = make(map[emotion.Emotion]int)
				}
				r.UnderrepresentedBy[e] = int(largest) - n
			}
		}
	}
	r.SizeScore = min(1, float64(r.TotalSamples)/targetSamples)
	r.OverallQuality = (r.BalanceScore + r.SizeScore) / 2
	r.ReadyForTraining = r.TotalSamples >= minimumSamples

	r.Recommendations = recommendations(r)
	return r
}

func recommendations(r *QualityReport) []string {
	var out []string
	if !r.ReadyForTraining {
		out = append(out, fmt.Sprintf("Add at least %d more samples before training", r.MinimumSamples-r.TotalSamples))
	}
	if r.SizeScore < 0.5 {
		out = append(out, fmt.Sprintf("Collect more data: %d of %d recommended samples", r.TotalSamples, targetSamples))
	}
	if r.TotalSamples > 0 && r.BalanceScore < 0.7 {
		out = append(out, "Balance the dataset: some emotions have far fewer samples than others")
	}
	if r.TotalSamples > 0 && len(r.MissingEmotions) > 0 {
		out = append(out, fmt.Sprintf("No samples yet for %d emotions; the model can only predict labels it has seen", len(r.MissingEmotions)))
	}
	if len(out) == 0 {
		out = append(out, "Dataset looks good for training")
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
