// Package extractors computes the acoustic descriptors of a clip and flattens them into the
// fixed-length vectors consumed by the classifier.
package extractors

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/audio-emotion/configs"
	"github.com/RyanBlaney/audio-emotion/pkg/audio/analyzers"
	"github.com/RyanBlaney/audio-emotion/pkg/audio/decode"
	"github.com/RyanBlaney/audio-emotion/pkg/common"
)

// Extraction is the outcome of analysing one encoded clip
type Extraction struct {
	Features *FeatureSet    `json:"features"`
	Vector   []float64      `json:"vector"`
	Signal   *decode.Signal `json:"signal"`
}

// EmotionFeatureExtractor decodes audio and computes the emotion descriptor set
type EmotionFeatureExtractor struct {
	audio    configs.AudioConfig
	features configs.FeatureConfig

	decoder    *decode.Decoder
	spectral   *analyzers.SpectralAnalyzer
	mel        *analyzers.MelFilterbank
	tempo      *analyzers.TempoEstimator
	vectorizer *Vectorizer
	logger     logging.Logger
}

// NewEmotionFeatureExtractor creates an extractor. The mel filterbank and tempo estimator are
// built once and only read afterwards, so an extractor is safe for concurrent use.
func NewEmotionFeatureExtractor(audio configs.AudioConfig, features configs.FeatureConfig) (*EmotionFeatureExtractor, error) {
	if audio.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", audio.SampleRate)
	}

	mel, err := analyzers.NewMelFilterbank(audio.SampleRate, features.FrameSize, features.MelBands, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build mel filterbank: %w", err)
	}

	return &EmotionFeatureExtractor{
		audio:    audio,
		features: features,
		decoder: decode.NewDecoder(decode.Config{
			SampleRate:  audio.SampleRate,
			MaxDuration: audio.MaxDuration,
			ContentType: audio.ContentType,
		}),
		spectral:   analyzers.NewSpectralAnalyzer(audio.SampleRate),
		mel:        mel,
		tempo:      analyzers.NewTempoEstimator(audio.SampleRate, features.HopSize, features.MinTempo, features.MaxTempo, features.PriorTempo),
		vectorizer: NewVectorizer(DefaultLayout(features.MFCCCoefficients)),
		logger: logging.WithFields(logging.Fields{
			"component": "emotion_feature_extractor",
		}),
	}, nil
}

func (e *EmotionFeatureExtractor) GetName() string {
	return "EmotionFeatureExtractor"
}

// Vectorizer returns the vectorizer matching this extractor's layout
func (e *EmotionFeatureExtractor) Vectorizer() *Vectorizer {
	return e.vectorizer
}

// Extract decodes data and computes its features and vector
func (e *EmotionFeatureExtractor) Extract(ctx context.Context, data []byte, formatHint string) (*Extraction, error) {
	signal, err := e.decoder.Decode(ctx, data, formatHint)
	if err != nil {
		return nil, err
	}

	fs, err := e.ExtractSignal(signal.Samples, signal.SampleRate)
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Features: fs,
		Vector:   e.vectorizer.Vectorize(fs),
		Signal:   signal,
	}, nil
}

// ExtractSignal computes the feature set of mono samples. Samples at another rate are resampled
// first. A signal with no samples, or whose peak never rises above the silence floor, is rejected
// with an empty-signal error instead of producing NaN descriptors.
func (e *EmotionFeatureExtractor) ExtractSignal(samples []float64, sampleRate int) (*FeatureSet, error) {
	if len(samples) == 0 {
		return nil, common.NewError(common.KindEmptySignal, "extract", "signal has no samples", nil)
	}
	if sampleRate != e.audio.SampleRate {
		samples = decode.Resample(samples, sampleRate, e.audio.SampleRate)
	}
	if peak := analyzers.Peak(samples); peak <= e.audio.SilenceFloor {
		return nil, common.NewError(common.KindEmptySignal, "extract",
			fmt.Sprintf("signal peak %.3g is below the silence floor %.3g", peak, e.audio.SilenceFloor), nil)
	}

	start := time.Now()
	frameSize, hopSize := e.features.FrameSize, e.features.HopSize

	stft, err := e.spectral.ComputeSTFT(samples, frameSize, hopSize)
	if err != nil {
		return nil, common.NewError(common.KindEmptySignal, "extract", "spectral analysis failed", err)
	}

	logMel := analyzers.PowerToDB(e.mel.Apply(e.spectral.ComputePowerSpectrum(stft)), e.features.TopDB)
	mfcc := analyzers.ColumnMeans(analyzers.MFCC(logMel, e.features.MFCCCoefficients), e.features.MFCCCoefficients)

	desc, err := analyzers.NewDescriptorAnalyzer(analyzers.DescriptorConfig{
		SampleRate:     e.audio.SampleRate,
		FrameSize:      frameSize,
		HopSize:        hopSize,
		RolloffPercent: e.features.RolloffPercent,
		ChromaMinFreq:  e.features.ChromaMinFreq,
		ChromaMaxFreq:  e.features.ChromaMaxFreq,
	}).Compute(samples, stft)
	if err != nil {
		return nil, common.NewError(common.KindEmptySignal, "extract", "descriptor analysis failed", err)
	}

	fs := &FeatureSet{
		MFCC:             finite(mfcc),
		SpectralCentroid: finiteScalar(analyzers.Mean(desc.Centroid)),
		SpectralRolloff:  finiteScalar(analyzers.Mean(desc.Rolloff)),
		ZeroCrossingRate: finiteScalar(analyzers.Mean(desc.ZeroCrossingRate)),
		Chroma:           finite(analyzers.ColumnMeans(desc.Chroma, analyzers.ChromaBins)),
		Tempo:            finiteScalar(e.tempo.Estimate(analyzers.OnsetStrength(logMel))),
		RMSEnergy:        finiteScalar(analyzers.Mean(desc.RMS)),
	}

	e.logger.Debug("Features extracted", logging.Fields{
		"samples":     len(samples),
		"frames":      stft.TimeFrames,
		"tempo":       fs.Tempo,
		"centroid":    fs.SpectralCentroid,
		"rms":         fs.RMSEnergy,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return fs, nil
}

func finite(values []float64) []float64 {
	for i, v := range values {
		values[i] = finiteScalar(v)
	}
	return values
}

func finiteScalar(v float64) float64 {
	if !analyzers.IsFinite(v) {
		return 0
	}
	return v
}
