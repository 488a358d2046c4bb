package analyzers

import (
	"fmt"

	"github.com/RyanBlaney/sonido-sonar/algorithms/chroma"
	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sonar/algorithms/temporal"
	fpanalyzers "github.com/RyanBlaney/sonido-sonar/fingerprint/analyzers"
	"gonum.org/v1/gonum/floats"
)

// ChromaBins is the number of pitch classes, C through B
const ChromaBins = 12

// DescriptorConfig holds the framing and band limits of the frame descriptors
type DescriptorConfig struct {
	SampleRate     int
	FrameSize      int
	HopSize        int
	RolloffPercent float64
	ChromaMinFreq  float64
	ChromaMaxFreq  float64
}

// FrameDescriptors holds the per-frame scalar and chroma descriptors of one clip
type FrameDescriptors struct {
	Centroid         []float64
	Rolloff          []float64
	ZeroCrossingRate []float64
	RMS              []float64
	Chroma           [][]float64
}

// DescriptorAnalyzer computes the frame descriptors with the sonido-sonar algorithms. Those
// cache frequency bins and windows internally, so an analyzer serves one clip at a time.
type DescriptorAnalyzer struct {
	config DescriptorConfig

	centroid *spectral.SpectralCentroid
	rolloff  *spectral.SpectralRolloff
	zcr      *spectral.ZeroCrossingRate
	energy   *temporal.Energy
	chroma   *chroma.ChromaSTFT
	windows  *fpanalyzers.WindowGenerator
}

// NewDescriptorAnalyzer creates a descriptor analyzer
func NewDescriptorAnalyzer(config DescriptorConfig) *DescriptorAnalyzer {
	return &DescriptorAnalyzer{
		config:   config,
		centroid: spectral.NewSpectralCentroid(config.SampleRate),
		rolloff:  spectral.NewSpectralRolloff(config.SampleRate),
		zcr:      spectral.NewZeroCrossingRateWithParams(config.SampleRate, config.FrameSize, config.HopSize),
		energy:   temporal.NewEnergy(config.FrameSize, config.HopSize, config.SampleRate),
		chroma:   chroma.NewChromaSTFTDefault(config.SampleRate),
		windows:  fpanalyzers.NewWindowGenerator(),
	}
}

// Compute derives the descriptors of signal. Centroid and rolloff read the stft frames; the
// time-domain descriptors and chroma run over the same centred framing, so every descriptor
// has one value per stft frame.
func (da *DescriptorAnalyzer) Compute(signal []float64, stft *SpectrogramResult) (*FrameDescriptors, error) {
	cfg := da.config
	d := &FrameDescriptors{
		Centroid: make([]float64, stft.TimeFrames),
		Rolloff:  make([]float64, stft.TimeFrames),
	}
	for t, magnitude := range stft.Magnitude {
		d.Centroid[t] = da.centroid.Compute(magnitude)
		d.Rolloff[t] = da.rolloff.Compute(magnitude, cfg.RolloffPercent)
	}

	// edge padding keeps the border frames from crossing zero on padding alone
	frames := CentredFrames(signal, cfg.FrameSize, cfg.HopSize, PadEdge)
	d.ZeroCrossingRate = make([]float64, len(frames))
	for t, frame := range frames {
		d.ZeroCrossingRate[t] = da.zcr.ComputeNormalized(frame)
	}

	padded := PadCenter(signal, cfg.FrameSize/2, PadZero)
	d.RMS = da.energy.ComputeShortTimeEnergy(padded)

	window, err := da.windows.Generate(&fpanalyzers.WindowConfig{
		Type:      fpanalyzers.WindowHann,
		Size:      cfg.FrameSize,
		Normalize: true,
		Symmetric: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma window: %w", err)
	}

	chromagram, err := da.chroma.ComputeChromaWithCustomRange(padded, cfg.FrameSize, cfg.HopSize, window,
		cfg.ChromaMinFreq, cfg.ChromaMaxFreq)
	if err != nil {
		return nil, fmt.Errorf("chroma computation failed: %w", err)
	}
	d.Chroma = make([][]float64, len(chromagram))
	for t, frame := range chromagram {
		d.Chroma[t] = maxNormalize(frame)
	}

	return d, nil
}

// maxNormalize rescales a unit-sum chroma frame so its strongest class is 1. Silent frames
// stay all zero.
func maxNormalize(frame []float64) []float64 {
	out := make([]float64, ChromaBins)
	copy(out, frame)
	if peak := floats.Max(out); peak > amin {
		floats.Scale(1/peak, out)
	} else {
		clear(out)
	}
	return out
}
