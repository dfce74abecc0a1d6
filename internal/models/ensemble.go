package models

import "math/rand"

// bootstrap draws len(y) rows with replacement.
func bootstrap(rng *rand.Rand, X [][]float64, y []int, w []float64) ([][]float64, []int, []float64) {
	n := len(X)
	Xb := make([][]float64, n)
	yb := make([]int, n)
	wb := make([]float64, n)
	for i := 0; i < n; i++ {
		j := rng.Intn(n)
		Xb[i], yb[i], wb[i] = X[j], y[j], w[j]
	}
	return Xb, yb, wb
}

func averageProba(trees []*DecisionTree, X [][]float64) []float64 {
	n := len(X)
	if len(trees) == 0 { return constProba(n, 0.5) }
	out := make([]float64, n)
	for _, dt := range trees {
		p := dt.PredictProba(X)
		for i := 0; i < n; i++ { out[i] += p[i] }
	}
	m := float64(len(trees))
	for i := 0; i < n; i++ { out[i] /= m }
	return out
}

func averageImportances(trees []*DecisionTree) []float64 {
	if len(trees) == 0 { return nil }
	var out []float64
	for _, dt := range trees {
		imp := dt.FeatureImportances()
		if out == nil { out = make([]float64, len(imp)) }
		for i := range imp { out[i] += imp[i] }
	}
	for i := range out { out[i] /= float64(len(trees)) }
	return out
}
