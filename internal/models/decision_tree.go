package models

import (
	"math"
	"math/rand"
	"sort"
)

type DTNode struct {
	Feature   int
	Threshold float64
	Left      *DTNode
	Right     *DTNode
	IsLeaf    bool
	ProbaLeaf float64
}

type DecisionTree struct {
	MaxDepth           int
	MinSamplesSplit    int
	MinSamplesLeaf     int
	MaxThresholdsPerFe int
	MaxFeatures        int
	ClassWeight        ClassWeight
	Seed               int64
	Root               *DTNode

	importances []float64
	rng         *rand.Rand
}

func NewDecisionTree() *DecisionTree {
	return &DecisionTree{MaxDepth: 6, MinSamplesSplit: 2, MinSamplesLeaf: 1, MaxThresholdsPerFe: 64}
}

func (dt *DecisionTree) Name() string { return "DecisionTree" }

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	return dt.fitWeighted(X, y, sampleWeights(y, dt.ClassWeight))
}

func (dt *DecisionTree) fitWeighted(X [][]float64, y []int, w []float64) error {
	dt.Root = nil
	if len(X) == 0 { return nil }
	dt.rng = newRand(dt.Seed)
	dt.importances = make([]float64, len(X[0]))
	idx := make([]int, len(X))
	for i := range idx { idx[i] = i }
	dt.Root = dt.build(X, y, w, idx, 0)
	var total float64
	for _, v := range dt.importances { total += v }
	if total > 0 {
		for i := range dt.importances { dt.importances[i] /= total }
	}
	return nil
}

func (dt *DecisionTree) FeatureImportances() []float64 {
	out := make([]float64, len(dt.importances))
	copy(out, dt.importances)
	return out
}

func (dt *DecisionTree) Predict(X [][]float64) []int { return predictAt(dt.PredictProba(X), 0.5) }

func (dt *DecisionTree) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X { out[i] = dt.predictProbaOne(X[i]) }
	return out
}

func (dt *DecisionTree) predictProbaOne(x []float64) float64 {
	n := dt.Root
	if n == nil { return 0.5 }
	for !n.IsLeaf {
		if x[n.Feature] <= n.Threshold { n = n.Left } else { n = n.Right }
		if n == nil { return 0.5 }
	}
	return n.ProbaLeaf
}

func (dt *DecisionTree) build(X [][]float64, y []int, w []float64, idx []int, depth int) *DTNode {
	node := &DTNode{}
	wTot, wPos := weightedCounts(y, w, idx)
	p := 0.0
	if wTot > 0 { p = wPos / wTot }
	maxDepth := dt.MaxDepth
	if maxDepth <= 0 { maxDepth = math.MaxInt32 }
	if len(idx) < dt.MinSamplesSplit || depth >= maxDepth || p == 0 || p == 1 {
		node.IsLeaf = true
		node.ProbaLeaf = p
		return node
	}
	minLeaf := dt.MinSamplesLeaf
	if minLeaf < 1 { minLeaf = 1 }

	bestFeature := -1
	bestThr := 0.0
	bestImp := math.MaxFloat64
	var leftIdxBest, rightIdxBest []int

	for _, f := range pickFeatures(dt.rng, len(X[0]), dt.MaxFeatures) {
		for _, thr := range candidateThresholds(dt.rng, X, idx, f, dt.MaxThresholdsPerFe) {
			lIdx, rIdx := splitIdx(X, idx, f, thr)
			if len(lIdx) < minLeaf || len(rIdx) < minLeaf { continue }
			imp := giniImpurity(y, w, lIdx, rIdx)
			if imp < bestImp {
				bestImp = imp
				bestFeature = f
				bestThr = thr
				leftIdxBest = lIdx
				rightIdxBest = rIdx
			}
		}
	}

	if bestFeature == -1 {
		node.IsLeaf = true
		node.ProbaLeaf = p
		return node
	}
	dt.importances[bestFeature] += wTot * (2*p*(1-p) - bestImp)
	node.Feature = bestFeature
	node.Threshold = bestThr
	node.Left = dt.build(X, y, w, leftIdxBest, depth+1)
	node.Right = dt.build(X, y, w, rightIdxBest, depth+1)
	return node
}

func weightedCounts(y []int, w []float64, idx []int) (tot, pos float64) {
	for _, i := range idx {
		tot += w[i]
		if y[i] == 1 { pos += w[i] }
	}
	return
}

func splitIdx(X [][]float64, idx []int, f int, thr float64) ([]int, []int) {
	l := make([]int, 0, len(idx))
	r := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][f] <= thr { l = append(l, i) } else { r = append(r, i) }
	}
	return l, r
}

// giniImpurity is the weighted Gini index of a split, 2p(1-p) per side.
func giniImpurity(y []int, w []float64, lIdx, rIdx []int) float64 {
	g := func(ids []int) (float64, float64) {
		tot, pos := weightedCounts(y, w, ids)
		if tot == 0 { return 0, 0 }
		p := pos / tot
		return 2 * p * (1 - p), tot
	}
	gl, wl := g(lIdx)
	gr, wr := g(rIdx)
	n := wl + wr
	if n == 0 { return 0 }
	return (wl/n)*gl + (wr/n)*gr
}

// candidateThresholds returns the distinct values of feature f (minus the
// largest, which cannot split) or a random sample of them when there are
// more than maxC.
func candidateThresholds(rng *rand.Rand, X [][]float64, idx []int, f int, maxC int) []float64 {
	values := make([]float64, len(idx))
	for j, i := range idx { values[j] = X[i][f] }
	sort.Float64s(values)
	uniq := values[:0]
	for _, v := range values {
		if len(uniq) == 0 || v != uniq[len(uniq)-1] { uniq = append(uniq, v) }
	}
	if len(uniq) < 2 { return nil }
	uniq = uniq[:len(uniq)-1]
	if maxC <= 0 || len(uniq) <= maxC { return uniq }
	out := make([]float64, len(uniq))
	copy(out, uniq)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	out = out[:maxC]
	sort.Float64s(out)
	return out
}

func pickFeatures(rng *rand.Rand, nFeats int, maxFeats int) []int {
	out := make([]int, nFeats)
	for i := range out { out[i] = i }
	if maxFeats <= 0 || maxFeats >= nFeats { return out }
	rng.Shuffle(nFeats, func(i, j int) { out[i], out[j] = out[j], out[i] })
	out = out[:maxFeats]
	sort.Ints(out)
	return out
}
