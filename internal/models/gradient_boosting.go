package models

import (
	"math"
	"math/rand"
	"sort"
)

type gbTree struct {
	Feature   int
	Threshold float64
	LeftVal   float64
	RightVal  float64
}

// GradientBoosting fits depth-one regression stumps to the log-loss
// gradient, shrunk by LearningRate.
type GradientBoosting struct {
	NEstimators        int
	LearningRate       float64
	MinSamples         int
	MaxThresholdsPerFe int
	Subsample          float64
	ClassWeight        ClassWeight
	Seed               int64
	Init               float64
	Trees              []gbTree
}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{NEstimators: 100, LearningRate: 0.1, MinSamples: 1, MaxThresholdsPerFe: 32, Subsample: 1}
}

func (gb *GradientBoosting) Name() string { return "GradientBoosting" }

func sigmoid(z float64) float64 { return 1.0 / (1.0 + math.Exp(-z)) }

func (gb *GradientBoosting) Fit(X [][]float64, y []int) error {
	gb.Trees = nil
	n := len(X)
	if n == 0 { return nil }
	w := sampleWeights(y, gb.ClassWeight)
	var wTot, wPos float64
	for i := 0; i < n; i++ {
		wTot += w[i]
		if y[i] == 1 { wPos += w[i] }
	}
	base := wPos / wTot
	if base <= 1e-3 { base = 1e-3 }
	if base >= 1-1e-3 { base = 1 - 1e-3 }
	gb.Init = math.Log(base / (1.0 - base))
	F := make([]float64, n)
	for i := 0; i < n; i++ { F[i] = gb.Init }

	rng := newRand(gb.Seed)
	nFeats := len(X[0])
	cands := make([][]float64, nFeats)
	for j := 0; j < nFeats; j++ { cands[j] = gbCandidateThresholds(X, j, gb.MaxThresholdsPerFe) }

	r := make([]float64, n)
	for m := 0; m < gb.NEstimators; m++ {
		for i := 0; i < n; i++ { r[i] = float64(y[i]) - sigmoid(F[i]) }
		rows := gb.sampleRows(rng, n)

		best := gbTree{Feature: -1}
		bestSSE := math.MaxFloat64
		for j := 0; j < nFeats; j++ {
			for _, thr := range cands[j] {
				var leftSum, leftW, rightSum, rightW float64
				var leftCount, rightCount int
				for _, i := range rows {
					if X[i][j] <= thr {
						leftSum += w[i] * r[i]; leftW += w[i]; leftCount++
					} else {
						rightSum += w[i] * r[i]; rightW += w[i]; rightCount++
					}
				}
				if leftCount < gb.MinSamples || rightCount < gb.MinSamples { continue }
				if leftW == 0 || rightW == 0 { continue }
				leftAvg := leftSum / leftW
				rightAvg := rightSum / rightW

				var sse float64
				for _, i := range rows {
					d := r[i] - rightAvg
					if X[i][j] <= thr { d = r[i] - leftAvg }
					sse += w[i] * d * d
				}
				if sse < bestSSE {
					bestSSE = sse
					best = gbTree{Feature: j, Threshold: thr, LeftVal: leftAvg, RightVal: rightAvg}
				}
			}
		}
		if best.Feature == -1 { break }
		gb.Trees = append(gb.Trees, best)
		for i := 0; i < n; i++ {
			inc := best.LeftVal
			if X[i][best.Feature] > best.Threshold { inc = best.RightVal }
			F[i] += gb.LearningRate * inc
		}
	}
	return nil
}

func (gb *GradientBoosting) sampleRows(rng *rand.Rand, n int) []int {
	if gb.Subsample <= 0 || gb.Subsample >= 1 {
		rows := make([]int, n)
		for i := range rows { rows[i] = i }
		return rows
	}
	k := int(math.Max(1, math.Round(gb.Subsample*float64(n))))
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

func (gb *GradientBoosting) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		f := gb.Init
		for _, t := range gb.Trees {
			inc := t.LeftVal
			if X[i][t.Feature] > t.Threshold { inc = t.RightVal }
			f += gb.LearningRate * inc
		}
		out[i] = sigmoid(f)
	}
	return out
}

func (gb *GradientBoosting) Predict(X [][]float64) []int { return predictAt(gb.PredictProba(X), 0.5) }

// FeatureImportances counts the squared stump step size per feature.
func (gb *GradientBoosting) FeatureImportances() []float64 {
	if len(gb.Trees) == 0 { return nil }
	maxF := 0
	for _, t := range gb.Trees { if t.Feature > maxF { maxF = t.Feature } }
	out := make([]float64, maxF+1)
	var total float64
	for _, t := range gb.Trees {
		d := (t.LeftVal - t.RightVal) * (t.LeftVal - t.RightVal)
		out[t.Feature] += d
		total += d
	}
	if total > 0 {
		for i := range out { out[i] /= total }
	}
	return out
}

func gbCandidateThresholds(X [][]float64, j int, nCand int) []float64 {
	if nCand <= 0 { nCand = 16 }
	n := len(X)
	vals := make([]float64, n)
	for i := 0; i < n; i++ { vals[i] = X[i][j] }
	sort.Float64s(vals)
	out := make([]float64, 0, nCand)
	for k := 1; k < nCand; k++ {
		idx := int(math.Round(float64(k) / float64(nCand) * float64(n-1)))
		if idx <= 0 || idx >= n { continue }
		thr := vals[idx]
		if thr == vals[n-1] { continue }
		if len(out) == 0 || thr != out[len(out)-1] { out = append(out, thr) }
	}
	if len(out) == 0 && n > 0 && vals[0] != vals[n-1] {
		out = append(out, vals[0])
	}
	return out
}
