package analyzers

import "math"

// TempoEstimator estimates a global tempo from an onset strength envelope
type TempoEstimator struct {
	sampleRate int
	hopSize    int
	minBPM     float64
	maxBPM     float64
	priorBPM   float64
	// maxLagSeconds bounds the autocorrelation window
	maxLagSeconds float64
}

// NewTempoEstimator creates a tempo estimator for envelopes sampled every hopSize samples
func NewTempoEstimator(sampleRate, hopSize int, minBPM, maxBPM, priorBPM float64) *TempoEstimator {
	return &TempoEstimator{
		sampleRate:    sampleRate,
		hopSize:       hopSize,
		minBPM:        minBPM,
		maxBPM:        maxBPM,
		priorBPM:      priorBPM,
		maxLagSeconds: 8,
	}
}

// OnsetStrength returns the spectral flux of a log-mel matrix: for each frame, the mean over
// bands of the positive dB increase from the previous frame. Frame 0 has no predecessor and is 0.
func OnsetStrength(logMel [][]float64) []float64 {
	env := make([]float64, len(logMel))
	for t := 1; t < len(logMel); t++ {
		var sum float64
		for i, v := range logMel[t] {
			if d := v - logMel[t-1][i]; d > 0 {
				sum += d
			}
		}
		env[t] = sum / float64(len(logMel[t]))
	}
	return env
}

// Estimate returns the tempo in BPM whose period best matches the envelope autocorrelation,
// weighted by a log-normal prior (one octave standard deviation) around the prior tempo.
// An envelope without onsets yields 0.
func (te *TempoEstimator) Estimate(envelope []float64) float64 {
	if len(envelope) < 2 {
		return 0
	}

	framesPerSecond := float64(te.sampleRate) / float64(te.hopSize)
	maxLag := min(len(envelope)-1, int(math.Round(te.maxLagSeconds*framesPerSecond)))

	// remove the mean so a constant envelope does not correlate with itself at every lag
	mean := Mean(envelope)
	centred := make([]float64, len(envelope))
	for i, v := range envelope {
		centred[i] = v - mean
	}

	ac0 := autocorrelate(centred, 0)
	if ac0 <= amin {
		return 0
	}

	logPrior := math.Log2(te.priorBPM)
	best, bestScore := 0.0, math.Inf(-1)
	for lag := 1; lag <= maxLag; lag++ {
		bpm := 60 * framesPerSecond / float64(lag)
		if bpm < te.minBPM || bpm > te.maxBPM {
			continue
		}
		ac := math.Max(0, autocorrelate(centred, lag)/ac0)
		z := math.Log2(bpm) - logPrior
		score := math.Log1p(1e6*ac) - 0.5*z*z
		if score > bestScore {
			best, bestScore = bpm, score
		}
	}
	return best
}

func autocorrelate(x []float64, lag int) float64 {
	var sum float64
	for i := lag; i < len(x); i++ {
		sum += x[i] * x[i-lag]
	}
	return sum
}
