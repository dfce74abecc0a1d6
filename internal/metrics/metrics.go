package metrics

import (
	"fmt"
	"math"
)

const (
	Accuracy         = "accuracy"
	BalancedAccuracy = "balanced_accuracy"
	Precision        = "precision"
	Recall           = "recall"
	Specificity      = "specificity"
	F1               = "f1"
	MCC              = "mcc"
	ROCAUC           = "roc_auc"
	AveragePrecision = "average_precision"
	BrierScore       = "brier_score"
	ConfusionMatrix  = "confusion_matrix"
)

// Names enumerates every supported metric key, confusion_matrix included.
var Names = []string{
	Accuracy, BalancedAccuracy, Precision, Recall, Specificity, F1, MCC,
	ROCAUC, AveragePrecision, BrierScore, ConfusionMatrix,
}

// ScalarNames is Names without confusion_matrix.
func ScalarNames() []string {
	out := make([]string, 0, len(Names)-1)
	for _, n := range Names {
		if n != ConfusionMatrix { out = append(out, n) }
	}
	return out
}

func IsScalar(name string) bool {
	for _, n := range ScalarNames() {
		if n == name { return true }
	}
	return false
}

// Confusion is a binary confusion matrix, rows are true classes and
// columns predicted classes: [[tn, fp], [fn, tp]].
type Confusion [][]int

func NewConfusion(y []int, scores []float64, thr float64) Confusion {
	cm := Confusion{{0, 0}, {0, 0}}
	for i := range y {
		pred := 0
		if scores[i] >= thr { pred = 1 }
		cm[y[i]][pred]++
	}
	return cm
}

func (c Confusion) TN() int { return c[0][0] }
func (c Confusion) FP() int { return c[0][1] }
func (c Confusion) FN() int { return c[1][0] }
func (c Confusion) TP() int { return c[1][1] }

// Values holds every metric of one partition at one threshold.
type Values struct {
	Scalars   map[string]float64
	Confusion Confusion
}

// Names returns the metric names present, in enumeration order.
func (v Values) Names() []string {
	var out []string
	for _, n := range Names {
		if n == ConfusionMatrix {
			if v.Confusion != nil { out = append(out, n) }
			continue
		}
		if _, ok := v.Scalars[n]; ok { out = append(out, n) }
	}
	return out
}

// Compute evaluates every metric for scores thresholded at thr. Metrics that
// are undefined for the input (e.g. ROC AUC with a single class) are NaN.
func Compute(y []int, scores []float64, thr float64) (Values, error) {
	if len(y) != len(scores) { return Values{}, fmt.Errorf("metrics: %d labels but %d scores", len(y), len(scores)) }
	if len(y) == 0 { return Values{}, fmt.Errorf("metrics: empty partition") }
	for i, v := range y {
		if v != 0 && v != 1 { return Values{}, fmt.Errorf("metrics: label %d at row %d is not binary", v, i) }
	}
	cm := NewConfusion(y, scores, thr)
	tp, fp, tn, fn := float64(cm.TP()), float64(cm.FP()), float64(cm.TN()), float64(cm.FN())
	n := tp + fp + tn + fn

	precision := safeDivide(tp, tp+fp)
	recall := safeDivide(tp, tp+fn)
	specificity := safeDivide(tn, tn+fp)
	s := map[string]float64{
		Accuracy:         (tp + tn) / n,
		BalancedAccuracy: (recall + specificity) / 2,
		Precision:        precision,
		Recall:           recall,
		Specificity:      specificity,
		F1:               f1Score(tp, fp, fn),
		MCC:              mcc(tp, fp, tn, fn),
		ROCAUC:           rocAUC(y, scores),
		AveragePrecision: averagePrecision(y, scores),
		BrierScore:       brier(y, scores),
	}
	return Values{Scalars: s, Confusion: cm}, nil
}

func f1Score(tp, fp, fn float64) float64 { return safeDivide(2*tp, 2*tp+fp+fn) }

func mcc(tp, fp, tn, fn float64) float64 {
	den := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	return safeDivide(tp*tn-fp*fn, den)
}

func brier(y []int, scores []float64) float64 {
	var s float64
	for i := range y {
		d := scores[i] - float64(y[i])
		s += d * d
	}
	return s / float64(len(y))
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 { return 0 }
	r := numerator / denominator
	if math.IsNaN(r) || math.IsInf(r, 0) { return 0 }
	return r
}

func nan() float64 { return math.NaN() }
