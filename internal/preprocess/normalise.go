package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"outcomeeval/internal/dataset"
)

const (
	NormaliseStandard = "standard"
	NormaliseMinMax   = "minmax"
)

// scaler maps column j to (x - shift[j]) / scale[j].
type scaler struct {
	shift, scale []float64
}

func fitScaler(kind string, m dataset.FeatureMatrix) (*scaler, error) {
	p := len(m.Columns)
	s := &scaler{shift: make([]float64, p), scale: make([]float64, p)}
	for j := 0; j < p; j++ {
		col := m.Column(j)
		switch kind {
		case NormaliseStandard:
			mean, variance := stat.PopMeanVariance(col, nil)
			s.shift[j] = mean
			s.scale[j] = sqrtOrOne(variance)
		case NormaliseMinMax:
			lo, hi := col[0], col[0]
			for _, v := range col {
				if v < lo { lo = v }
				if v > hi { hi = v }
			}
			s.shift[j] = lo
			s.scale[j] = hi - lo
			if s.scale[j] == 0 { s.scale[j] = 1 }
		default:
			return nil, fmt.Errorf("unknown normaliser %q", kind)
		}
	}
	return s, nil
}

// apply scales the first len(shift) columns; trailing columns unknown to
// the fitted scaler are left untouched.
func (s *scaler) apply(m dataset.FeatureMatrix) dataset.FeatureMatrix {
	out := m.Clone()
	for _, r := range out.Rows {
		for j := range r {
			if j < len(s.shift) { r[j] = (r[j] - s.shift[j]) / s.scale[j] }
		}
	}
	return out
}

func sqrtOrOne(variance float64) float64 {
	if variance <= 0 { return 1 }
	return math.Sqrt(variance)
}
