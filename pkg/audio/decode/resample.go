package decode

import "math"

// sincZeroCrossings is the half-width of the interpolation kernel in zero crossings
const sincZeroCrossings = 16

// Resample converts x from srcRate to dstRate with a Hann-windowed sinc kernel. When
// downsampling the kernel cutoff follows the destination Nyquist frequency. The output has
// ceil(len(x) * dstRate / srcRate) samples. Kernel ringing on full-scale edges is clipped so
// the output stays within [-1, 1].
func Resample(x []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate || len(x) == 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	ratio := float64(dstRate) / float64(srcRate)
	n := int(math.Ceil(float64(len(x)) * ratio))
	cutoff := math.Min(1, ratio)
	halfWidth := float64(sincZeroCrossings) / cutoff

	out := make([]float64, n)
	for i := range out {
		t := float64(i) / ratio
		lo := max(0, int(math.Ceil(t-halfWidth)))
		hi := min(len(x)-1, int(math.Floor(t+halfWidth)))

		var acc float64
		for j := lo; j <= hi; j++ {
			d := t - float64(j)
			window := 0.5 * (1 + math.Cos(math.Pi*d/halfWidth))
			acc += x[j] * cutoff * sinc(cutoff*d) * window
		}
		out[i] = math.Max(-1, math.Min(1, acc))
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
