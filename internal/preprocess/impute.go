package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"outcomeeval/internal/dataset"
)

// ErrMissingValues reports NaN cells left after preprocessing without an
// imputer.
var ErrMissingValues = errors.New("missing feature values and no imputer configured")

const (
	ImputeNone      = ""
	ImputeMean      = "mean"
	ImputeKNN       = "knn"
	ImputeIterative = "iterative"

	knnNeighbours   = 5
	iterativeRounds = 10
	ridgeLambda     = 1e-3
)

// imputer fills NaN cells. fit sees the training matrix only.
type imputer interface {
	fit(m dataset.FeatureMatrix) error
	transform(m dataset.FeatureMatrix) dataset.FeatureMatrix
}

func newImputer(name string) (imputer, error) {
	switch name {
	case ImputeNone:
		return noImputer{}, nil
	case ImputeMean:
		return &meanImputer{}, nil
	case ImputeKNN:
		return &knnImputer{k: knnNeighbours}, nil
	case ImputeIterative:
		return &iterativeImputer{rounds: iterativeRounds}, nil
	}
	return nil, fmt.Errorf("unknown imputer %q", name)
}

type noImputer struct{}

func (noImputer) fit(dataset.FeatureMatrix) error { return nil }

func (noImputer) transform(m dataset.FeatureMatrix) dataset.FeatureMatrix { return m }

func columnMeans(m dataset.FeatureMatrix) []float64 {
	means := make([]float64, len(m.Columns))
	for j := range means {
		var s float64
		var n int
		for _, r := range m.Rows {
			if !math.IsNaN(r[j]) {
				s += r[j]
				n++
			}
		}
		if n > 0 { means[j] = s / float64(n) }
	}
	return means
}

type meanImputer struct{ means []float64 }

func (im *meanImputer) fit(m dataset.FeatureMatrix) error {
	im.means = columnMeans(m)
	return nil
}

func (im *meanImputer) transform(m dataset.FeatureMatrix) dataset.FeatureMatrix {
	out := m.Clone()
	for _, r := range out.Rows {
		for j := range r {
			if math.IsNaN(r[j]) && j < len(im.means) { r[j] = im.means[j] }
		}
	}
	return out
}

// knnImputer replaces a missing cell by the mean of that column over the k
// training rows closest on the columns both rows have.
type knnImputer struct {
	k     int
	train [][]float64
	means []float64
}

func (im *knnImputer) fit(m dataset.FeatureMatrix) error {
	im.train = m.Clone().Rows
	im.means = columnMeans(m)
	return nil
}

func (im *knnImputer) transform(m dataset.FeatureMatrix) dataset.FeatureMatrix {
	out := m.Clone()
	for _, r := range out.Rows {
		if !hasNaN(r) { continue }
		nbrs := im.neighbours(r)
		for j := range r {
			if !math.IsNaN(r[j]) || j >= len(im.means) { continue }
			var s float64
			var n int
			for _, t := range nbrs {
				if !math.IsNaN(im.train[t][j]) {
					s += im.train[t][j]
					n++
				}
			}
			if n > 0 { r[j] = s / float64(n) } else { r[j] = im.means[j] }
		}
	}
	return out
}

// neighbours ranks training rows by the NaN-aware euclidean distance,
// scaled up by the fraction of shared columns.
func (im *knnImputer) neighbours(r []float64) []int {
	type cand struct {
		i int
		d float64
	}
	var cs []cand
	for i, t := range im.train {
		var a, b []float64
		for j := range r {
			if j < len(t) && !math.IsNaN(r[j]) && !math.IsNaN(t[j]) {
				a = append(a, r[j])
				b = append(b, t[j])
			}
		}
		if len(a) == 0 { continue }
		d := floats.Distance(a, b, 2) * math.Sqrt(float64(len(r))/float64(len(a)))
		cs = append(cs, cand{i, d})
	}
	// partial selection keeps ties in training order
	out := make([]int, 0, im.k)
	used := make([]bool, len(cs))
	for len(out) < im.k && len(out) < len(cs) {
		best := -1
		for c := range cs {
			if !used[c] && (best < 0 || cs[c].d < cs[best].d) { best = c }
		}
		used[best] = true
		out = append(out, cs[best].i)
	}
	return out
}

// iterativeImputer models every incomplete column as a ridge regression on
// all other columns, refining the estimates for a fixed number of rounds.
type iterativeImputer struct {
	rounds int
	means  []float64
	// coef[j] holds intercept then weights for column j, nil when the
	// column was complete in training.
	coef [][]float64
}

func (im *iterativeImputer) fit(m dataset.FeatureMatrix) error {
	im.means = columnMeans(m)
	p := len(m.Columns)
	im.coef = make([][]float64, p)
	missing := missingMask(m)
	filled := (&meanImputer{means: im.means}).transform(m)
	for round := 0; round < im.rounds; round++ {
		for j := 0; j < p; j++ {
			if !anyTrue(missing, j) { continue }
			beta, err := ridgeFit(filled.Rows, missing, j)
			if err != nil { return fmt.Errorf("iterative imputer column %q: %w", m.Columns[j], err) }
			im.coef[j] = beta
			for i, r := range filled.Rows {
				if missing[i][j] { r[j] = predictRow(beta, r, j) }
			}
		}
	}
	return nil
}

func (im *iterativeImputer) transform(m dataset.FeatureMatrix) dataset.FeatureMatrix {
	missing := missingMask(m)
	out := (&meanImputer{means: im.means}).transform(m)
	for j := range im.coef {
		if im.coef[j] == nil { continue }
		for i, r := range out.Rows {
			if missing[i][j] { r[j] = predictRow(im.coef[j], r, j) }
		}
	}
	return out
}

func missingMask(m dataset.FeatureMatrix) [][]bool {
	out := make([][]bool, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = make([]bool, len(r))
		for j, v := range r { out[i][j] = math.IsNaN(v) }
	}
	return out
}

func anyTrue(mask [][]bool, j int) bool {
	for _, r := range mask {
		if r[j] { return true }
	}
	return false
}

func hasNaN(r []float64) bool {
	for _, v := range r {
		if math.IsNaN(v) { return true }
	}
	return false
}

// ridgeFit solves (AᵀA + λI)β = Aᵀb over rows where column target is
// observed. A is [1, x_-target].
func ridgeFit(rows [][]float64, missing [][]bool, target int) ([]float64, error) {
	p := len(rows[0])
	var data, b []float64
	n := 0
	for i, r := range rows {
		if missing[i][target] { continue }
		data = append(data, 1)
		for j, v := range r {
			if j != target { data = append(data, v) }
		}
		b = append(b, r[target])
		n++
	}
	if n == 0 { return nil, fmt.Errorf("no observed values") }
	A := mat.NewDense(n, p, data)
	var ata mat.SymDense
	ata.SymOuterK(1, A.T())
	for k := 0; k < p; k++ { ata.SetSym(k, k, ata.At(k, k)+ridgeLambda) }
	var chol mat.Cholesky
	if ok := chol.Factorize(&ata); !ok { return nil, fmt.Errorf("normal equations not positive definite") }
	var atb mat.VecDense
	atb.MulVec(A.T(), mat.NewVecDense(n, b))
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &atb); err != nil { return nil, err }
	return beta.RawVector().Data, nil
}

// predictRow ignores trailing columns the regression was not fitted on.
func predictRow(beta, r []float64, target int) float64 {
	v := beta[0]
	k := 1
	for j, x := range r[:len(beta)] {
		if j == target { continue }
		v += beta[k] * x
		k++
	}
	return v
}
