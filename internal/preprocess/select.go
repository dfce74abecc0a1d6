package preprocess

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"outcomeeval/internal/dataset"
)

const (
	SelectMissing      = "missing"
	SelectSingleUnique = "single_unique"
	SelectCollinear    = "collinear"
)

// missingColumns returns raw columns whose missing fraction exceeds thr.
func missingColumns(t dataset.Table, names []string, thr float64) []string {
	var out []string
	if len(t.Rows) == 0 { return out }
	for _, n := range names {
		cells, _ := t.Column(n)
		miss := 0
		for _, v := range cells {
			if dataset.Missing(v) { miss++ }
		}
		if float64(miss)/float64(len(cells)) > thr { out = append(out, n) }
	}
	return out
}

// singleUniqueColumns returns raw columns with at most one distinct present
// value.
func singleUniqueColumns(t dataset.Table, names []string) []string {
	var out []string
	for _, n := range names {
		cells, _ := t.Column(n)
		if len(levelsOf(cells)) <= 1 { out = append(out, n) }
	}
	return out
}

// collinearColumns scans encoded column pairs in order and drops the later
// column of every pair whose absolute Pearson correlation exceeds thr.
// Correlation uses the rows where both values are present.
func collinearColumns(m dataset.FeatureMatrix, thr float64) []string {
	n := len(m.Columns)
	cols := make([][]float64, n)
	for j := range cols { cols[j] = m.Column(j) }
	dropped := make([]bool, n)
	var out []string
	for b := 1; b < n; b++ {
		for a := 0; a < b; a++ {
			if dropped[a] { continue }
			if r := pairwiseCorrelation(cols[a], cols[b]); math.Abs(r) > thr {
				dropped[b] = true
				out = append(out, m.Columns[b])
				break
			}
		}
	}
	return out
}

func pairwiseCorrelation(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) { continue }
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 3 { return 0 }
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) { return 0 }
	return r
}
