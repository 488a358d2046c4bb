package analyzers

import (
	"fmt"
	"math"
)

// Slaney mel scale constants: linear below 1 kHz, logarithmic above
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
	amin         = 1e-10
)

var melLogStep = math.Log(6.4) / 27

// HzToMel converts a frequency to the Slaney mel scale
func HzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSP
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

// MelToHz converts a Slaney mel value back to Hz
func MelToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// melFilter is one triangular filter stored over its non-zero bin range
type melFilter struct {
	start   int
	weights []float64
}

// MelFilterbank maps power spectra onto area-normalised triangular mel bands
type MelFilterbank struct {
	filters  []melFilter
	freqBins int
}

// NewMelFilterbank builds numBands filters spanning [fmin, fmax] for a windowSize-point FFT
func NewMelFilterbank(sampleRate, windowSize, numBands int, fmin, fmax float64) (*MelFilterbank, error) {
	if numBands <= 0 {
		return nil, fmt.Errorf("number of mel bands must be positive, got %d", numBands)
	}
	if fmax <= 0 || fmax > float64(sampleRate)/2 {
		fmax = float64(sampleRate) / 2
	}
	if fmin < 0 || fmin >= fmax {
		return nil, fmt.Errorf("invalid mel frequency range [%g, %g]", fmin, fmax)
	}

	freqBins := windowSize/2 + 1
	fftFreqs := make([]float64, freqBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(windowSize)
	}

	// numBands+2 edge frequencies equally spaced in mel
	minMel, maxMel := HzToMel(fmin), HzToMel(fmax)
	edges := make([]float64, numBands+2)
	for i := range edges {
		edges[i] = MelToHz(minMel + (maxMel-minMel)*float64(i)/float64(numBands+1))
	}

	filters := make([]melFilter, numBands)
	for m := 0; m < numBands; m++ {
		lowerWidth := edges[m+1] - edges[m]
		upperWidth := edges[m+2] - edges[m+1]
		norm := 2 / (edges[m+2] - edges[m])

		start := -1
		weights := make([]float64, 0, 8)
		for k, f := range fftFreqs {
			lower := (f - edges[m]) / lowerWidth
			upper := (edges[m+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			if w <= 0 {
				if start >= 0 {
					break
				}
				continue
			}
			if start < 0 {
				start = k
			}
			weights = append(weights, w*norm)
		}
		if start < 0 {
			start = 0
		}
		filters[m] = melFilter{start: start, weights: weights}
	}

	return &MelFilterbank{filters: filters, freqBins: freqBins}, nil
}

// NumBands returns the number of mel bands
func (mf *MelFilterbank) NumBands() int {
	return len(mf.filters)
}

// Apply projects every power spectrum frame onto the mel bands
func (mf *MelFilterbank) Apply(power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, frame := range power {
		bands := make([]float64, len(mf.filters))
		for m, f := range mf.filters {
			var sum float64
			for i, w := range f.weights {
				sum += w * frame[f.start+i]
			}
			bands[m] = sum
		}
		out[t] = bands
	}
	return out
}

// PowerToDB converts a power matrix to decibels relative to 1.0, clamping everything more than
// topDB below the global peak. A non-positive topDB disables the clamp.
func PowerToDB(power [][]float64, topDB float64) [][]float64 {
	out := make([][]float64, len(power))
	peak := math.Inf(-1)
	for t, frame := range power {
		row := make([]float64, len(frame))
		for i, p := range frame {
			row[i] = 10 * math.Log10(math.Max(p, amin))
			if row[i] > peak {
				peak = row[i]
			}
		}
		out[t] = row
	}

	if topDB > 0 {
		floor := peak - topDB
		for _, row := range out {
			for i, v := range row {
				if v < floor {
					row[i] = floor
				}
			}
		}
	}
	return out
}

// DCT is an orthonormal type-II DCT truncated to its first coefficients
type DCT struct {
	basis [][]float64
}

// NewDCT precomputes the orthonormal DCT-II basis for inputs of length size
func NewDCT(size, n int) *DCT {
	basis := make([][]float64, n)
	for k := 0; k < n; k++ {
		scale := math.Sqrt(2 / float64(size))
		if k == 0 {
			scale = math.Sqrt(1 / float64(size))
		}
		row := make([]float64, size)
		for i := 0; i < size; i++ {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(size)))
		}
		basis[k] = row
	}
	return &DCT{basis: basis}
}

// Transform applies the DCT to one frame
func (d *DCT) Transform(x []float64) []float64 {
	out := make([]float64, len(d.basis))
	for k, row := range d.basis {
		var sum float64
		for i, b := range row {
			sum += b * x[i]
		}
		out[k] = sum
	}
	return out
}

// MFCC computes per-frame cepstral coefficients from a log-mel matrix
func MFCC(logMel [][]float64, numCoefficients int) [][]float64 {
	if len(logMel) == 0 {
		return nil
	}
	dct := NewDCT(len(logMel[0]), numCoefficients)
	out := make([][]float64, len(logMel))
	for t, frame := range logMel {
		out[t] = dct.Transform(frame)
	}
	return out
}
