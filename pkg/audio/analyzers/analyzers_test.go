package analyzers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/RyanBlaney/audio-emotion/internal/testutil"
)

const testRate = 22050

func TestComputeSTFTShape(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	sa := NewSpectralAnalyzer(testRate)
	signal := testutil.Sine(1000, 0.5, 1, testRate)

	stft, err := sa.ComputeSTFT(signal, 2048, 512)
	require.NoError(t, err)

	assert.Equal(t, 1+len(signal)/512, stft.TimeFrames)
	assert.Equal(t, 1025, stft.FreqBins)
	assert.Len(t, stft.Magnitude, stft.TimeFrames)
	assert.Len(t, stft.Magnitude[0], stft.FreqBins)
	assert.InDelta(t, float64(testRate)/2048, stft.FreqResolution, 1e-9)

	_, err = sa.ComputeSTFT(nil, 2048, 512)
	assert.Error(t, err)
	_, err = sa.ComputeSTFT(signal, 1000, 512)
	assert.Error(t, err)
}

func computeDescriptors(t *testing.T, signal []float64) *FrameDescriptors {
	t.Helper()
	sa := NewSpectralAnalyzer(testRate)
	stft, err := sa.ComputeSTFT(signal, 2048, 512)
	require.NoError(t, err)

	d, err := NewDescriptorAnalyzer(DescriptorConfig{
		SampleRate:     testRate,
		FrameSize:      2048,
		HopSize:        512,
		RolloffPercent: 0.85,
		ChromaMinFreq:  65.4,
		ChromaMaxFreq:  8000,
	}).Compute(signal, stft)
	require.NoError(t, err)
	require.Len(t, d.Centroid, stft.TimeFrames)
	require.Len(t, d.Rolloff, stft.TimeFrames)
	require.Len(t, d.ZeroCrossingRate, stft.TimeFrames)
	require.Len(t, d.RMS, stft.TimeFrames)
	require.Len(t, d.Chroma, stft.TimeFrames)
	return d
}

func TestSpectralDescriptorsOfPureTone(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	d := computeDescriptors(t, testutil.Sine(1000, 0.5, 2, testRate))

	assert.InDelta(t, 1000, Mean(d.Centroid), 60)
	rolloff := Mean(d.Rolloff)
	assert.Greater(t, rolloff, 900.0)
	assert.Less(t, rolloff, 1500.0)
}

func TestEnergyAndZeroCrossingsOrdering(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	quiet := computeDescriptors(t, testutil.Sine(220, 0.1, 1, testRate))
	loud := computeDescriptors(t, testutil.Sine(220, 0.8, 1, testRate))
	noise := computeDescriptors(t, testutil.Noise(0.3, testRate, 5))

	// interior frames carry the full tone, border frames are partly padding
	assert.InDelta(t, 0.8/math.Sqrt2, loud.RMS[len(loud.RMS)/2], 0.01)
	assert.Greater(t, Mean(loud.RMS), Mean(quiet.RMS))

	assert.InDelta(t, 2*220.0/testRate, loud.ZeroCrossingRate[len(loud.ZeroCrossingRate)/2], 0.005)
	assert.Greater(t, Mean(noise.ZeroCrossingRate), Mean(loud.ZeroCrossingRate))
}

func TestChromaFollowsPitch(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	strongest := func(signal []float64) int {
		chroma := ColumnMeans(computeDescriptors(t, signal).Chroma, ChromaBins)
		require.Len(t, chroma, ChromaBins)
		best := 0
		for i, v := range chroma {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			if v > chroma[best] {
				best = i
			}
		}
		return best
	}

	assert.Equal(t, 9, strongest(testutil.Sine(440, 0.5, 1, testRate)), "440 Hz is pitch class A")
	assert.Equal(t, 0, strongest(testutil.Sine(523.25, 0.5, 1, testRate)), "523 Hz is pitch class C")
}

func TestMaxNormalize(t *testing.T) {
	assert.Equal(t, []float64{0.5, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		maxNormalize([]float64{0.25, 0.5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	assert.Equal(t, make([]float64, ChromaBins), maxNormalize(make([]float64, ChromaBins)))
}

func TestCentredFrames(t *testing.T) {
	frames := CentredFrames([]float64{1, 2, 3, 4}, 4, 2, PadEdge)
	require.Len(t, frames, 3)
	assert.Equal(t, []float64{1, 1, 1, 2}, frames[0])
	assert.Equal(t, []float64{1, 2, 3, 4}, frames[1])
	assert.Equal(t, []float64{3, 4, 4, 4}, frames[2])
}

func TestMelScaleRoundTrip(t *testing.T) {
	assert.InDelta(t, 15.0, HzToMel(1000), 1e-9)
	assert.InDelta(t, 1000.0, MelToHz(15), 1e-9)

	for _, hz := range []float64{0, 60, 440, 999, 1000, 4000, 11025} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-6)
	}
}

func TestMelFilterbankAndMFCC(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	mf, err := NewMelFilterbank(testRate, 2048, 128, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 128, mf.NumBands())

	sa := NewSpectralAnalyzer(testRate)
	stft, err := sa.ComputeSTFT(testutil.Noise(0.3, testRate, 7), 2048, 512)
	require.NoError(t, err)

	mel := mf.Apply(sa.ComputePowerSpectrum(stft))
	require.Len(t, mel, stft.TimeFrames)
	require.Len(t, mel[0], 128)

	logMel := PowerToDB(mel, 80)
	peak := math.Inf(-1)
	low := math.Inf(1)
	for _, row := range logMel {
		for _, v := range row {
			peak = math.Max(peak, v)
			low = math.Min(low, v)
		}
	}
	assert.LessOrEqual(t, peak-low, 80.0+1e-9)

	mfcc := MFCC(logMel, 13)
	require.Len(t, mfcc, stft.TimeFrames)
	for _, frame := range mfcc {
		require.Len(t, frame, 13)
		for _, c := range frame {
			assert.False(t, math.IsNaN(c) || math.IsInf(c, 0))
		}
	}

	_, err = NewMelFilterbank(testRate, 2048, 0, 0, 0)
	assert.Error(t, err)
}

func TestDCTOfConstantIsDCOnly(t *testing.T) {
	dct := NewDCT(8, 4)
	out := dct.Transform([]float64{1, 1, 1, 1, 1, 1, 1, 1})
	assert.InDelta(t, math.Sqrt(8), out[0], 1e-9)
	for _, c := range out[1:] {
		assert.InDelta(t, 0, c, 1e-9)
	}
}

func TestTempoOfClickTrack(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	// one click every 22 hops: 60 * 22050 / (512 * 22) BPM
	period := 22 * 512
	signal := testutil.Clicks(period, 10*testRate, 256, 3)
	want := 60 * float64(testRate) / float64(period)

	sa := NewSpectralAnalyzer(testRate)
	stft, err := sa.ComputeSTFT(signal, 2048, 512)
	require.NoError(t, err)

	mf, err := NewMelFilterbank(testRate, 2048, 128, 0, 0)
	require.NoError(t, err)
	logMel := PowerToDB(mf.Apply(sa.ComputePowerSpectrum(stft)), 80)

	te := NewTempoEstimator(testRate, 512, 30, 300, 120)
	tempo := te.Estimate(OnsetStrength(logMel))
	assert.InDelta(t, want, tempo, 2)
}

func TestTempoWithoutOnsets(t *testing.T) {
	te := NewTempoEstimator(testRate, 512, 30, 300, 120)
	assert.Zero(t, te.Estimate(make([]float64, 200)))
	assert.Zero(t, te.Estimate(nil))
}

func TestPadCenter(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 1, 2, 3, 0, 0}, PadCenter([]float64{1, 2, 3}, 2, PadZero))
	assert.Equal(t, []float64{1, 1, 1, 2, 3, 3, 3}, PadCenter([]float64{1, 2, 3}, 2, PadEdge))
}
