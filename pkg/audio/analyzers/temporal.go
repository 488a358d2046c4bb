package analyzers

import "math"

// PadMode selects how PadCenter fills the borders
type PadMode int

const (
	// PadZero pads with silence
	PadZero PadMode = iota
	// PadEdge repeats the first and last sample
	PadEdge
)

// PadCenter pads signal with n samples at each end
func PadCenter(signal []float64, n int, mode PadMode) []float64 {
	out := make([]float64, len(signal)+2*n)
	copy(out[n:], signal)
	if mode == PadEdge && len(signal) > 0 {
		first, last := signal[0], signal[len(signal)-1]
		for i := 0; i < n; i++ {
			out[i] = first
			out[n+len(signal)+i] = last
		}
	}
	return out
}

// CentredFrames slices signal into frames of frameSize samples, hopSize apart, each centred on
// its hop. The frames share the padded buffer and must not be modified.
func CentredFrames(signal []float64, frameSize, hopSize int, mode PadMode) [][]float64 {
	padded := PadCenter(signal, frameSize/2, mode)
	n := 1 + len(signal)/hopSize
	frames := make([][]float64, n)
	for t := range frames {
		frames[t] = padded[t*hopSize : t*hopSize+frameSize]
	}
	return frames
}

// Peak returns the largest absolute sample value
func Peak(signal []float64) float64 {
	var peak float64
	for _, s := range signal {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}
