package metrics

import (
	"math"
	"sort"
)

// Curve is a sequence of (X, Y) points with the score threshold producing
// each point. ROC: X=FPR, Y=TPR. PR: X=recall, Y=precision.
type Curve struct {
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
	Thresholds []float64 `json:"thresholds"`
	AUC        float64   `json:"auc"`
}

type scored struct {
	s float64
	y int
}

// sweep orders the samples by descending score and reports cumulative
// (tp, fp) after every distinct score.
func sweep(y []int, scores []float64, visit func(thr float64, tp, fp int)) (pos, neg int) {
	pairs := make([]scored, len(y))
	for i := range y {
		pairs[i] = scored{scores[i], y[i]}
		if y[i] == 1 { pos++ } else { neg++ }
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].s > pairs[j].s })
	tp, fp := 0, 0
	for i, p := range pairs {
		if p.y == 1 { tp++ } else { fp++ }
		if i == len(pairs)-1 || pairs[i+1].s != p.s { visit(p.s, tp, fp) }
	}
	return pos, neg
}

// ROC computes the receiver operating characteristic at every distinct
// score. The first point (0,0) carries threshold max(score)+1.
func ROC(y []int, scores []float64) Curve {
	c := Curve{}
	type pt struct {
		thr    float64
		tp, fp int
	}
	var pts []pt
	pos, neg := sweep(y, scores, func(thr float64, tp, fp int) { pts = append(pts, pt{thr, tp, fp}) })
	top := 1.0
	if len(pts) > 0 { top = pts[0].thr + 1 }
	c.X = append(c.X, 0)
	c.Y = append(c.Y, 0)
	c.Thresholds = append(c.Thresholds, top)
	for _, p := range pts {
		c.X = append(c.X, safeDivide(float64(p.fp), float64(neg)))
		c.Y = append(c.Y, safeDivide(float64(p.tp), float64(pos)))
		c.Thresholds = append(c.Thresholds, p.thr)
	}
	if pos == 0 || neg == 0 {
		c.AUC = math.NaN()
	} else {
		c.AUC = Trapezoid(c.X, c.Y)
	}
	return c
}

// PrecisionRecall computes precision and recall at every distinct score,
// ordered by ascending threshold and closed by the (recall 0, precision 1)
// point. AUC carries the average precision.
func PrecisionRecall(y []int, scores []float64) Curve {
	var rec, prec, thr []float64
	pos, _ := sweep(y, scores, func(t float64, tp, fp int) {
		rec = append(rec, float64(tp))
		prec = append(prec, safeDivide(float64(tp), float64(tp+fp)))
		thr = append(thr, t)
	})
	c := Curve{}
	for i := len(rec) - 1; i >= 0; i-- {
		c.X = append(c.X, safeDivide(rec[i], float64(pos)))
		c.Y = append(c.Y, prec[i])
		c.Thresholds = append(c.Thresholds, thr[i])
	}
	c.X = append(c.X, 0)
	c.Y = append(c.Y, 1)
	c.AUC = averagePrecision(y, scores)
	return c
}

// Trapezoid integrates y over x with the trapezoidal rule.
func Trapezoid(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x); i++ { area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2 }
	return area
}

func rocAUC(y []int, scores []float64) float64 { return ROC(y, scores).AUC }

// averagePrecision is sum over thresholds of (R_n - R_{n-1}) * P_n.
func averagePrecision(y []int, scores []float64) float64 {
	pos := 0
	for _, v := range y {
		if v == 1 { pos++ }
	}
	if pos == 0 { return math.NaN() }
	var ap, prevRec float64
	sweep(y, scores, func(_ float64, tp, fp int) {
		rec := float64(tp) / float64(pos)
		ap += (rec - prevRec) * float64(tp) / float64(tp+fp)
		prevRec = rec
	})
	return ap
}

// Interpolate samples a monotone curve on grid with linear interpolation,
// used to average fold curves. xs must be sorted ascending.
func Interpolate(xs, ys, grid []float64) []float64 {
	out := make([]float64, len(grid))
	if len(xs) == 0 { return out }
	for k, g := range grid {
		i := sort.SearchFloat64s(xs, g)
		switch {
		case i == 0:
			out[k] = ys[0]
		case i >= len(xs):
			out[k] = ys[len(ys)-1]
		case xs[i] == g:
			out[k] = ys[i]
		default:
			x0, x1 := xs[i-1], xs[i]
			out[k] = ys[i-1] + (ys[i]-ys[i-1])*(g-x0)/(x1-x0)
		}
	}
	return out
}
