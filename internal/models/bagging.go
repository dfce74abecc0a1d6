package models

type Bagging struct {
	NEstimators        int
	MaxDepth           int
	MinSamples         int
	MaxThresholdsPerFe int
	Seed               int64
	Trees              []*DecisionTree
}

func NewBagging() *Bagging {
	return &Bagging{NEstimators: 30, MaxDepth: 6, MinSamples: 2, MaxThresholdsPerFe: 32, Trees: []*DecisionTree{}}
}

func (bg *Bagging) Name() string { return "Bagging" }

func (bg *Bagging) Fit(X [][]float64, y []int) error {
	bg.Trees = nil
	if len(X) == 0 { return nil }
	if bg.NEstimators <= 0 { bg.NEstimators = 30 }
	rng := newRand(bg.Seed)
	w := sampleWeights(y, NoClassWeight)
	bg.Trees = make([]*DecisionTree, 0, bg.NEstimators)
	for k := 0; k < bg.NEstimators; k++ {
		Xb, yb, wb := bootstrap(rng, X, y, w)
		dt := NewDecisionTree()
		dt.MaxDepth = bg.MaxDepth
		dt.MinSamplesSplit = bg.MinSamples
		dt.MaxThresholdsPerFe = bg.MaxThresholdsPerFe
		dt.Seed = rng.Int63()
		if err := dt.fitWeighted(Xb, yb, wb); err != nil { return err }
		bg.Trees = append(bg.Trees, dt)
	}
	return nil
}

func (bg *Bagging) Predict(X [][]float64) []int { return predictAt(bg.PredictProba(X), 0.5) }

func (bg *Bagging) PredictProba(X [][]float64) []float64 { return averageProba(bg.Trees, X) }

func (bg *Bagging) FeatureImportances() []float64 { return averageImportances(bg.Trees) }
