package metrics

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold is used when a fold has no positive examples.
const DefaultThreshold = 0.5

// BestF1Threshold sweeps every distinct score of a fold as a candidate
// threshold (positive when score >= t) and returns the one with the highest
// F1. Ties keep the smallest threshold.
func BestF1Threshold(y []int, scores []float64) float64 {
	pos := 0
	for _, v := range y {
		if v == 1 { pos++ }
	}
	if pos == 0 || len(scores) == 0 { return DefaultThreshold }
	best, bestF1 := DefaultThreshold, -1.0
	// sweep visits thresholds in descending order, so >= keeps the smallest.
	sweep(y, scores, func(thr float64, tp, fp int) {
		f := f1Score(float64(tp), float64(fp), float64(pos-tp))
		if f >= bestF1 {
			bestF1 = f
			best = thr
		}
	})
	return best
}

// Median of per-fold thresholds, the operating point applied to test.
func Median(values []float64) float64 {
	m, err := stats.Median(values)
	if err != nil { return DefaultThreshold }
	return m
}

// MeanStd summarises fold values, ignoring NaN entries.
func MeanStd(values []float64) (mean, std float64) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if v == v { clean = append(clean, v) }
	}
	if len(clean) == 0 { return nan(), nan() }
	if len(clean) == 1 { return clean[0], 0 }
	return stat.MeanStdDev(clean, nil)
}
