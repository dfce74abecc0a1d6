package models

import (
	"math"
)

type RandomForest struct {
	NEstimators        int
	MaxDepth           int
	MinSamples         int
	MinSamplesLeaf     int
	MaxThresholdsPerFe int
	MaxFeatures        int
	ClassWeight        ClassWeight
	Seed               int64
	Trees              []*DecisionTree
}

func NewRandomForest() *RandomForest {
	return &RandomForest{NEstimators: 100, MaxDepth: 6, MinSamples: 2, MinSamplesLeaf: 1, MaxThresholdsPerFe: 32, Trees: []*DecisionTree{}}
}

func (rf *RandomForest) Name() string { return "RandomForest" }

func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	rf.Trees = nil
	if len(X) == 0 { return nil }
	if rf.NEstimators <= 0 { rf.NEstimators = 100 }
	nFeats := len(X[0])
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Min(float64(nFeats), math.Sqrt(float64(nFeats)))))
	}
	rng := newRand(rf.Seed)
	w := sampleWeights(y, rf.ClassWeight)
	rf.Trees = make([]*DecisionTree, 0, rf.NEstimators)
	for k := 0; k < rf.NEstimators; k++ {
		Xb, yb, wb := bootstrap(rng, X, y, w)
		dt := NewDecisionTree()
		dt.MaxDepth = rf.MaxDepth
		dt.MinSamplesSplit = rf.MinSamples
		dt.MinSamplesLeaf = rf.MinSamplesLeaf
		dt.MaxThresholdsPerFe = rf.MaxThresholdsPerFe
		dt.MaxFeatures = maxFeatures
		dt.Seed = rng.Int63()
		if err := dt.fitWeighted(Xb, yb, wb); err != nil { return err }
		rf.Trees = append(rf.Trees, dt)
	}
	return nil
}

func (rf *RandomForest) Predict(X [][]float64) []int { return predictAt(rf.PredictProba(X), 0.5) }

func (rf *RandomForest) PredictProba(X [][]float64) []float64 { return averageProba(rf.Trees, X) }

func (rf *RandomForest) FeatureImportances() []float64 { return averageImportances(rf.Trees) }
