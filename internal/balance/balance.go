// Package balance resamples a training partition so the minority class is
// represented as often as the majority class.
package balance

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"outcomeeval/internal/config"
	"outcomeeval/internal/models"
)

var (
	// ErrUnsupportedDistribution marks a class distribution the technique
	// cannot resample. The caller skips the model/label combination.
	ErrUnsupportedDistribution = errors.New("unsupported class distribution")
	// ErrInsufficientMinority is returned when the minority class is smaller
	// than the neighbourhood the technique needs.
	ErrInsufficientMinority = fmt.Errorf("%w: too few minority samples", ErrUnsupportedDistribution)
)

// Neighbours used by SMOTE and ADASYN.
const Neighbours = 5

// Sampler returns a resampled copy of (X, y). Input slices are not modified;
// the input rows come first in the output, synthetic rows after.
type Sampler interface {
	Resample(X [][]float64, y []int) ([][]float64, []int, error)
	Name() string
}

// New returns the sampler for a resampling technique. class_weight and none
// need no resampling and return a nil Sampler.
func New(technique string, seed int64) (Sampler, error) {
	switch technique {
	case config.BalanceRandomOversampling:
		return &RandomOversampler{Seed: seed}, nil
	case config.BalanceSMOTE:
		return &SMOTE{K: Neighbours, Seed: seed}, nil
	case config.BalanceADASYN:
		return &ADASYN{K: Neighbours, Seed: seed}, nil
	case config.BalanceClassWeight, config.BalanceNone, "":
		return nil, nil
	}
	return nil, fmt.Errorf("balance: unknown technique %q", technique)
}

type classes struct {
	minority, majority []int
	minLabel           int
}

func splitClasses(y []int) (classes, error) {
	var pos, neg []int
	for i, v := range y {
		if v == 1 { pos = append(pos, i) } else { neg = append(neg, i) }
	}
	if len(pos) == 0 || len(neg) == 0 { return classes{}, fmt.Errorf("%w: single class in training data", ErrUnsupportedDistribution) }
	if len(pos) <= len(neg) { return classes{minority: pos, majority: neg, minLabel: 1}, nil }
	return classes{minority: neg, majority: pos, minLabel: 0}, nil
}

func cloneRows(X [][]float64, y []int, extra int) ([][]float64, []int) {
	outX := make([][]float64, len(X), len(X)+extra)
	for i := range X { outX[i] = append([]float64(nil), X[i]...) }
	outY := make([]int, len(y), len(y)+extra)
	copy(outY, y)
	return outX, outY
}

type RandomOversampler struct{ Seed int64 }

func (r *RandomOversampler) Name() string { return config.BalanceRandomOversampling }

func (r *RandomOversampler) Resample(X [][]float64, y []int) ([][]float64, []int, error) {
	c, err := splitClasses(y)
	if err != nil { return nil, nil, err }
	need := len(c.majority) - len(c.minority)
	outX, outY := cloneRows(X, y, need)
	rng := rand.New(rand.NewSource(r.Seed))
	for i := 0; i < need; i++ {
		src := c.minority[rng.Intn(len(c.minority))]
		outX = append(outX, append([]float64(nil), X[src]...))
		outY = append(outY, c.minLabel)
	}
	return outX, outY, nil
}

// SMOTE interpolates between a minority row and one of its K nearest
// minority neighbours.
type SMOTE struct {
	K    int
	Seed int64
}

func (s *SMOTE) Name() string { return config.BalanceSMOTE }

func (s *SMOTE) Resample(X [][]float64, y []int) ([][]float64, []int, error) {
	c, err := splitClasses(y)
	if err != nil { return nil, nil, err }
	if len(c.minority) <= s.K {
		return nil, nil, fmt.Errorf("%w: SMOTE needs more than %d, got %d", ErrInsufficientMinority, s.K, len(c.minority))
	}
	need := len(c.majority) - len(c.minority)
	minX := rows(X, c.minority)
	nbrs := neighbourhoods(minX, s.K)
	outX, outY := cloneRows(X, y, need)
	rng := rand.New(rand.NewSource(s.Seed))
	for i := 0; i < need; i++ {
		a := rng.Intn(len(minX))
		b := nbrs[a][rng.Intn(len(nbrs[a]))]
		outX = append(outX, interpolate(minX[a], minX[b], rng.Float64()))
		outY = append(outY, c.minLabel)
	}
	return outX, outY, nil
}

// ADASYN generates more synthetic rows around minority samples whose
// neighbourhood (over all rows) is dominated by the majority class.
type ADASYN struct {
	K    int
	Seed int64
}

func (a *ADASYN) Name() string { return config.BalanceADASYN }

func (a *ADASYN) Resample(X [][]float64, y []int) ([][]float64, []int, error) {
	c, err := splitClasses(y)
	if err != nil { return nil, nil, err }
	if len(c.minority) <= a.K {
		return nil, nil, fmt.Errorf("%w: ADASYN needs more than %d, got %d", ErrInsufficientMinority, a.K, len(c.minority))
	}
	need := len(c.majority) - len(c.minority)
	ratios := make([]float64, len(c.minority))
	var total float64
	for i, idx := range c.minority {
		var maj int
		for _, n := range models.Nearest(X, X[idx], a.K, idx) {
			if y[n] != c.minLabel { maj++ }
		}
		ratios[i] = float64(maj) / float64(a.K)
		total += ratios[i]
	}
	if total == 0 {
		return nil, nil, fmt.Errorf("%w: no minority sample has majority neighbours", ErrUnsupportedDistribution)
	}
	counts := make([]int, len(ratios))
	generated := 0
	for i, r := range ratios {
		counts[i] = int(math.Round(r / total * float64(need)))
		generated += counts[i]
	}
	minX := rows(X, c.minority)
	nbrs := neighbourhoods(minX, a.K)
	outX, outY := cloneRows(X, y, generated)
	rng := rand.New(rand.NewSource(a.Seed))
	for i, n := range counts {
		for j := 0; j < n; j++ {
			b := nbrs[i][rng.Intn(len(nbrs[i]))]
			outX = append(outX, interpolate(minX[i], minX[b], rng.Float64()))
			outY = append(outY, c.minLabel)
		}
	}
	return outX, outY, nil
}

func rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx { out[i] = X[j] }
	return out
}

func neighbourhoods(X [][]float64, k int) [][]int {
	out := make([][]int, len(X))
	for i := range X { out[i] = models.Nearest(X, X[i], k, i) }
	return out
}

func interpolate(a, b []float64, gap float64) []float64 {
	out := make([]float64, len(a))
	for i := range a { out[i] = a[i] + gap*(b[i]-a[i]) }
	return out
}
