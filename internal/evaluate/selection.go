package evaluate

import (
	"math"
	"math/rand"

	"outcomeeval/internal/dataset"
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/models"
)

const (
	selectorTrees = 50
	selectorDepth = 6
)

// selectFeatures fits a random forest on (X, y) and keeps the columns whose
// impurity importance is at least the mean importance. It returns every
// column when the forest finds no split.
func selectFeatures(X [][]float64, y []int, seed int64) ([]int, error) {
	if len(X) == 0 { return nil, nil }
	rf := models.NewRandomForest()
	rf.NEstimators = selectorTrees
	rf.MaxDepth = selectorDepth
	rf.Seed = seed
	if err := rf.Fit(X, y); err != nil { return nil, err }
	imp := rf.FeatureImportances()
	var mean float64
	for _, v := range imp { mean += v }
	mean /= float64(len(imp))
	var keep []int
	for j, v := range imp {
		if v >= mean && v > 0 { keep = append(keep, j) }
	}
	if len(keep) == 0 {
		keep = make([]int, len(imp))
		for j := range keep { keep[j] = j }
	}
	return keep, nil
}

func columns(X [][]float64, cols []int) [][]float64 {
	if cols == nil { return X }
	out := make([][]float64, len(X))
	for i, r := range X {
		row := make([]float64, len(cols))
		for k, j := range cols { row[k] = r[j] }
		out[i] = row
	}
	return out
}

func names(m dataset.FeatureMatrix, cols []int) []string {
	out := make([]string, len(cols))
	for k, j := range cols { out[k] = m.Columns[j] }
	return out
}

// permutationImportance measures the mean decrease in ROC AUC when one
// column of X is shuffled, over repeats seeded shuffles.
func permutationImportance(m models.Model, X [][]float64, y []int, features []string, repeats int, seed int64) []Attribution {
	base := metrics.ROC(y, m.PredictProba(X)).AUC
	rng := rand.New(rand.NewSource(seed))
	out := make([]Attribution, len(features))
	work := make([][]float64, len(X))
	for i := range X { work[i] = append([]float64(nil), X[i]...) }
	for j, f := range features {
		drops := make([]float64, repeats)
		for r := 0; r < repeats; r++ {
			perm := rng.Perm(len(X))
			for i := range work { work[i][j] = X[perm[i]][j] }
			drops[r] = base - metrics.ROC(y, m.PredictProba(work)).AUC
		}
		for i := range work { work[i][j] = X[i][j] }
		mean, std := metrics.MeanStd(drops)
		if math.IsNaN(std) { std = 0 }
		out[j] = Attribution{Feature: f, Mean: mean, Std: std}
	}
	return out
}
