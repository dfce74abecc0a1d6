package models

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

type NaiveBayes struct {
	VarSmoothing   float64
	ClassLogPriors [2]float64
	FeatureMeans   [2][]float64
	FeatureVars    [2][]float64
	present        [2]bool
}

func NewNaiveBayes(varSmoothing float64) *NaiveBayes {
	if varSmoothing <= 0 { varSmoothing = 1e-9 }
	return &NaiveBayes{VarSmoothing: varSmoothing}
}

func (nb *NaiveBayes) Name() string { return "NaiveBayes" }

func (nb *NaiveBayes) Fit(X [][]float64, y []int) error {
	nb.present = [2]bool{}
	if len(X) == 0 { return nil }
	nFeatures := len(X[0])

	var maxVar float64
	col := make([]float64, len(X))
	for j := 0; j < nFeatures; j++ {
		for i := range X { col[i] = X[i][j] }
		if v := stat.PopVariance(col, nil); v > maxVar { maxVar = v }
	}
	eps := nb.VarSmoothing * maxVar
	if eps == 0 { eps = nb.VarSmoothing }

	for class := 0; class < 2; class++ {
		var rows [][]float64
		for i, label := range y {
			if label == class { rows = append(rows, X[i]) }
		}
		if len(rows) == 0 { continue }
		nb.present[class] = true
		nb.ClassLogPriors[class] = math.Log(float64(len(rows)) / float64(len(y)))
		nb.FeatureMeans[class] = make([]float64, nFeatures)
		nb.FeatureVars[class] = make([]float64, nFeatures)
		vals := make([]float64, len(rows))
		for j := 0; j < nFeatures; j++ {
			for i, row := range rows { vals[i] = row[j] }
			mean, variance := stat.PopMeanVariance(vals, nil)
			nb.FeatureMeans[class][j] = mean
			nb.FeatureVars[class][j] = variance + eps
		}
	}
	return nil
}

func (nb *NaiveBayes) logLikelihood(class int, x []float64) float64 {
	lp := nb.ClassLogPriors[class]
	for j, v := range x {
		variance := nb.FeatureVars[class][j]
		diff := v - nb.FeatureMeans[class][j]
		lp += -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
	}
	return lp
}

func (nb *NaiveBayes) PredictProba(X [][]float64) []float64 {
	switch {
	case !nb.present[0] && !nb.present[1]:
		return constProba(len(X), 0.5)
	case !nb.present[0]:
		return constProba(len(X), 1)
	case !nb.present[1]:
		return constProba(len(X), 0)
	}
	out := make([]float64, len(X))
	for i, x := range X {
		l0 := nb.logLikelihood(0, x)
		l1 := nb.logLikelihood(1, x)
		out[i] = sigmoid(l1 - l0)
	}
	return out
}

func (nb *NaiveBayes) Predict(X [][]float64) []int { return predictAt(nb.PredictProba(X), 0.5) }
