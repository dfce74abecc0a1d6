package evaluate

import (
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/models"
)

// ValMetrics holds one value per validation fold for every scalar metric,
// plus the per-fold confusion matrices.
type ValMetrics struct {
	Scalars   map[string][]float64
	Confusion []metrics.Confusion
}

// Names lists the metric names present, confusion_matrix included.
func (v ValMetrics) Names() []string {
	var out []string
	for _, n := range metrics.Names {
		if n == metrics.ConfusionMatrix {
			if v.Confusion != nil { out = append(out, n) }
			continue
		}
		if _, ok := v.Scalars[n]; ok { out = append(out, n) }
	}
	return out
}

// Curves holds ROC and precision-recall coordinates at full threshold
// resolution: one curve per validation fold and one for the test set.
type Curves struct {
	ValROC  []metrics.Curve
	ValPR   []metrics.Curve
	TestROC metrics.Curve
	TestPR  metrics.Curve
	// Prevalence of the positive class in the test labels, the PR baseline.
	TestPrevalence float64
	ValPrevalence  float64
}

type Attribution struct {
	Feature string
	Mean    float64
	Std     float64
}

// TrialResult is the outcome of one model candidate on one label.
type TrialResult struct {
	Model      string
	Kind       models.Kind
	Label      string
	BestParams models.Params
	// CVScore is the mean validation refit metric of BestParams.
	CVScore        float64
	RefitMetric    string
	FoldThresholds []float64
	Threshold      float64
	Val            ValMetrics
	Test           metrics.Values
	Curves         Curves
	Skipped        []models.Params
	// SelectedFeatures is nil unless embedded feature selection ran.
	SelectedFeatures []string
	Attribution      []Attribution
}
