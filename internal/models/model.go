package models

import (
	"errors"
	"math/rand"
)

// ErrNoConvergence is returned by Fit when an optimiser diverges for the
// given hyperparameters. Callers skip that combination.
var ErrNoConvergence = errors.New("model did not converge")

type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) []float64
	Name() string
}

// FeatureImportancer is implemented by tree ensembles that expose the mean
// impurity decrease of every input column.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

type ClassWeight string

const (
	NoClassWeight ClassWeight = ""
	Balanced      ClassWeight = "balanced"
)

// sampleWeights returns n/(2*n_c) for every row when balanced, else ones.
func sampleWeights(y []int, cw ClassWeight) []float64 {
	w := make([]float64, len(y))
	for i := range w { w[i] = 1 }
	if cw != Balanced || len(y) == 0 { return w }
	var pos int
	for _, v := range y { if v == 1 { pos++ } }
	neg := len(y) - pos
	if pos == 0 || neg == 0 { return w }
	n := float64(len(y))
	wp := n / (2 * float64(pos))
	wn := n / (2 * float64(neg))
	for i, v := range y {
		if v == 1 { w[i] = wp } else { w[i] = wn }
	}
	return w
}

func predictAt(ps []float64, thr float64) []int {
	out := make([]int, len(ps))
	for i := range ps { if ps[i] >= thr { out[i] = 1 } }
	return out
}

func constProba(n int, p float64) []float64 {
	out := make([]float64, n)
	for i := range out { out[i] = p }
	return out
}

func newRand(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }
