package extractors

import "fmt"

// Vectorizer flattens feature sets into fixed-length vectors following a layout
type Vectorizer struct {
	layout Layout
}

// NewVectorizer creates a vectorizer for layout
func NewVectorizer(layout Layout) *Vectorizer {
	l := make(Layout, len(layout))
	copy(l, layout)
	return &Vectorizer{layout: l}
}

// Layout returns a copy of the vectorizer's layout
func (v *Vectorizer) Layout() Layout {
	l := make(Layout, len(v.layout))
	copy(l, v.layout)
	return l
}

// Size returns the length of every vector this vectorizer produces
func (v *Vectorizer) Size() int {
	return v.layout.Size()
}

// Vectorize flattens fs in layout order. Every descriptor contributes exactly its declared width:
// short or missing values are zero filled and extra values dropped, so the output length never
// depends on the data.
func (v *Vectorizer) Vectorize(fs *FeatureSet) []float64 {
	out := make([]float64, 0, v.layout.Size())
	for _, d := range v.layout {
		var values []float64
		if fs != nil {
			values, _ = fs.Values(d.Name)
		}
		for i := 0; i < d.Dim; i++ {
			if i < len(values) {
				out = append(out, values[i])
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// Unflatten rebuilds a feature set from a vector produced with the same layout
func (v *Vectorizer) Unflatten(vec []float64) (*FeatureSet, error) {
	if len(vec) != v.layout.Size() {
		return nil, fmt.Errorf("vector has %d elements, layout expects %d", len(vec), v.layout.Size())
	}

	fs := &FeatureSet{}
	offset := 0
	for _, d := range v.layout {
		values := make([]float64, d.Dim)
		copy(values, vec[offset:offset+d.Dim])
		if err := fs.set(d.Name, values); err != nil {
			return nil, err
		}
		offset += d.Dim
	}
	return fs, nil
}
