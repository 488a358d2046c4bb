package extractors

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Descriptor names, in the order they are flattened into a feature vector
const (
	DescriptorMFCC             = "mfcc"
	DescriptorSpectralCentroid = "spectral_centroid"
	DescriptorSpectralRolloff  = "spectral_rolloff"
	DescriptorZeroCrossingRate = "zero_crossing_rate"
	DescriptorChroma           = "chroma"
	DescriptorTempo            = "tempo"
	DescriptorRMSEnergy        = "rms_energy"
)

// FeatureSet holds the acoustic descriptors of one clip, each summarised over time
type FeatureSet struct {
	// WHY: timbre; the spectral envelope separates harsh, bright and dull delivery
	MFCC []float64 `json:"mfcc"` // Mean cepstral coefficients

	// WHY: brightness tracks arousal; excited speech and music push energy upwards
	SpectralCentroid float64 `json:"spectral_centroid"` // Hz
	SpectralRolloff  float64 `json:"spectral_rolloff"`  // Hz below which 85% of the magnitude lies

	// WHY: noisiness and fricative content
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`

	// WHY: harmonic colour (major/minor tendencies)
	Chroma []float64 `json:"chroma"` // Mean pitch-class energy, C..B

	// WHY: pace; fast material reads as happy or surprised, slow as sad
	Tempo float64 `json:"tempo"` // BPM

	// WHY: loudness; energetic vs subdued
	RMSEnergy float64 `json:"rms_energy"`
}

// Values returns the values of a named descriptor. Scalars are returned as a one-element slice.
func (fs *FeatureSet) Values(name string) ([]float64, bool) {
	switch name {
	case DescriptorMFCC:
		return fs.MFCC, true
	case DescriptorSpectralCentroid:
		return []float64{fs.SpectralCentroid}, true
	case DescriptorSpectralRolloff:
		return []float64{fs.SpectralRolloff}, true
	case DescriptorZeroCrossingRate:
		return []float64{fs.ZeroCrossingRate}, true
	case DescriptorChroma:
		return fs.Chroma, true
	case DescriptorTempo:
		return []float64{fs.Tempo}, true
	case DescriptorRMSEnergy:
		return []float64{fs.RMSEnergy}, true
	default:
		return nil, false
	}
}

// set assigns a named descriptor; scalars take the first value
func (fs *FeatureSet) set(name string, values []float64) error {
	first := func() float64 {
		if len(values) == 0 {
			return 0
		}
		return values[0]
	}

	switch name {
	case DescriptorMFCC:
		fs.MFCC = values
	case DescriptorSpectralCentroid:
		fs.SpectralCentroid = first()
	case DescriptorSpectralRolloff:
		fs.SpectralRolloff = first()
	case DescriptorZeroCrossingRate:
		fs.ZeroCrossingRate = first()
	case DescriptorChroma:
		fs.Chroma = values
	case DescriptorTempo:
		fs.Tempo = first()
	case DescriptorRMSEnergy:
		fs.RMSEnergy = first()
	default:
		return fmt.Errorf("unknown descriptor %q", name)
	}
	return nil
}

// Names returns every descriptor name the feature set carries
func (fs *FeatureSet) Names() []string {
	return []string{
		DescriptorMFCC,
		DescriptorSpectralCentroid,
		DescriptorSpectralRolloff,
		DescriptorZeroCrossingRate,
		DescriptorChroma,
		DescriptorTempo,
		DescriptorRMSEnergy,
	}
}

// Canonical renders the feature set as a stable string: descriptor names sorted, values in
// index order, floats in shortest round-trip form. Equal feature sets render identically.
func (fs *FeatureSet) Canonical() string {
	names := fs.Names()
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		values, _ := fs.Values(name)
		b.WriteByte('[')
		for j, v := range values {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Summary returns the scalar descriptors shown alongside a prediction
func (fs *FeatureSet) Summary() map[string]float64 {
	return map[string]float64{
		DescriptorSpectralCentroid: fs.SpectralCentroid,
		DescriptorSpectralRolloff:  fs.SpectralRolloff,
		DescriptorZeroCrossingRate: fs.ZeroCrossingRate,
		DescriptorTempo:            fs.Tempo,
		DescriptorRMSEnergy:        fs.RMSEnergy,
	}
}

// DescriptorSpec declares one descriptor's position and width in a feature vector
type DescriptorSpec struct {
	Name string `json:"name"`
	Dim  int    `json:"dim"`
}

// Layout is the ordered list of descriptors flattened into a feature vector
type Layout []DescriptorSpec

// DefaultLayout returns the canonical descriptor order for the given cepstral width
func DefaultLayout(mfccCoefficients int) Layout {
	return Layout{
		{Name: DescriptorMFCC, Dim: mfccCoefficients},
		{Name: DescriptorSpectralCentroid, Dim: 1},
		{Name: DescriptorSpectralRolloff, Dim: 1},
		{Name: DescriptorZeroCrossingRate, Dim: 1},
		{Name: DescriptorChroma, Dim: 12},
		{Name: DescriptorTempo, Dim: 1},
		{Name: DescriptorRMSEnergy, Dim: 1},
	}
}

// Size returns the length of vectors produced with this layout
func (l Layout) Size() int {
	n := 0
	for _, d := range l {
		n += d.Dim
	}
	return n
}

// FeatureNames names every vector element: scalars by descriptor, sequences as name[i]
func (l Layout) FeatureNames() []string {
	names := make([]string, 0, l.Size())
	for _, d := range l {
		if d.Dim == 1 {
			names = append(names, d.Name)
			continue
		}
		for i := 0; i < d.Dim; i++ {
			names = append(names, fmt.Sprintf("%s[%d]", d.Name, i))
		}
	}
	return names
}
