package analyzers

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// SpectralAnalyzer provides core FFT and spectral analysis functionality
type SpectralAnalyzer struct {
	sampleRate int
	logger     logging.Logger
}

// SpectrogramResult holds the result of STFT analysis
type SpectrogramResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// NewSpectralAnalyzer creates a new spectral analyzer
func NewSpectralAnalyzer(sampleRate int) *SpectralAnalyzer {
	return &SpectralAnalyzer{
		sampleRate: sampleRate,
		logger: logging.WithFields(logging.Fields{
			"component":   "spectral_analyzer",
			"sample_rate": sampleRate,
		}),
	}
}

// FFT computes the FFT of a real signal
func (sa *SpectralAnalyzer) FFT(x []float64) []complex128 {
	return fft.FFTReal(x)
}

// PeriodicHann returns an n-point periodic Hann window, the DFT-even form used for STFT analysis
func PeriodicHann(n int) []float64 {
	return window.Hann(n + 1)[:n]
}

// ComputeSTFT computes a centred magnitude STFT. The signal is zero padded by half a window on
// both sides so frame t is centred on sample t*hopSize, giving 1 + len(signal)/hopSize frames.
func (sa *SpectralAnalyzer) ComputeSTFT(signal []float64, windowSize, hopSize int) (*SpectrogramResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 || windowSize&(windowSize-1) != 0 {
		return nil, fmt.Errorf("window size must be a positive power of two, got %d", windowSize)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", hopSize)
	}

	padded := PadCenter(signal, windowSize/2, PadZero)
	numFrames := 1 + (len(padded)-windowSize)/hopSize
	freqBins := windowSize/2 + 1
	win := PeriodicHann(windowSize)

	logger := sa.logger.WithFields(logging.Fields{
		"function":      "ComputeSTFT",
		"signal_length": len(signal),
		"window_size":   windowSize,
		"hop_size":      hopSize,
		"frames":        numFrames,
	})
	logger.Debug("Computing STFT")

	magnitude := make([][]float64, numFrames)
	frame := make([]float64, windowSize)
	for t := 0; t < numFrames; t++ {
		start := t * hopSize
		for i := 0; i < windowSize; i++ {
			frame[i] = padded[start+i] * win[i]
		}

		spectrum := sa.FFT(frame)
		mag := make([]float64, freqBins)
		for k := 0; k < freqBins; k++ {
			mag[k] = cmplx.Abs(spectrum[k])
		}
		magnitude[t] = mag
	}

	return &SpectrogramResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sa.sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sa.sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sa.sampleRate),
	}, nil
}

// ComputePowerSpectrum squares the magnitude spectrogram
func (sa *SpectralAnalyzer) ComputePowerSpectrum(spectrogram *SpectrogramResult) [][]float64 {
	power := make([][]float64, spectrogram.TimeFrames)
	for t, frame := range spectrogram.Magnitude {
		p := make([]float64, len(frame))
		for k, m := range frame {
			p[k] = m * m
		}
		power[t] = p
	}
	return power
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ColumnMeans averages a Time x N matrix over time
func ColumnMeans(matrix [][]float64, n int) []float64 {
	means := make([]float64, n)
	if len(matrix) == 0 {
		return means
	}
	for _, row := range matrix {
		for i := 0; i < n && i < len(row); i++ {
			means[i] += row[i]
		}
	}
	for i := range means {
		means[i] /= float64(len(matrix))
	}
	return means
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
