package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogisticRegression is L2-regularised logistic regression trained with
// full-batch gradient descent. C is the inverse regularisation strength.
type LogisticRegression struct {
	C            float64
	LearningRate float64
	MaxIter      int
	Tol          float64
	ClassWeight  ClassWeight
	Weights      []float64
	Bias         float64
	Iterations   int
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, LearningRate: 0.1, MaxIter: 500, Tol: 1e-5}
}

func (lr *LogisticRegression) Name() string { return "LogisticRegression" }

func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	lr.Weights, lr.Bias, lr.Iterations = nil, 0, 0
	if len(X) == 0 { return nil }
	if lr.C <= 0 { return fmt.Errorf("logistic regression: C must be positive, got %g", lr.C) }
	d := len(X[0])
	w := sampleWeights(y, lr.ClassWeight)
	sw := floats.Sum(w)
	W := make([]float64, d)
	grad := make([]float64, d)
	var b float64
	for it := 0; it < lr.MaxIter; it++ {
		for j := range grad { grad[j] = 0 }
		var gb float64
		for i := range X {
			e := w[i] * (sigmoid(floats.Dot(W, X[i])+b) - float64(y[i]))
			floats.AddScaled(grad, e, X[i])
			gb += e
		}
		floats.Scale(1/sw, grad)
		gb /= sw
		floats.AddScaled(grad, 1/(lr.C*sw), W)

		floats.AddScaled(W, -lr.LearningRate, grad)
		b -= lr.LearningRate * gb
		lr.Iterations = it + 1
		if !finite(W) || math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("logistic regression (C=%g, learning_rate=%g) at iteration %d: %w", lr.C, lr.LearningRate, it, ErrNoConvergence)
		}
		if floats.Norm(grad, 2)+math.Abs(gb) < lr.Tol { break }
	}
	lr.Weights, lr.Bias = W, b
	return nil
}

func (lr *LogisticRegression) PredictProba(X [][]float64) []float64 {
	if lr.Weights == nil { return constProba(len(X), 0.5) }
	out := make([]float64, len(X))
	for i := range X { out[i] = sigmoid(floats.Dot(lr.Weights, X[i]) + lr.Bias) }
	return out
}

func (lr *LogisticRegression) Predict(X [][]float64) []int { return predictAt(lr.PredictProba(X), 0.5) }

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) { return false }
	}
	return true
}
