// Package evaluate runs the nested model selection for one model candidate
// on one label: balancing, optional feature selection, cross-validated
// hyperparameter search with F1 threshold calibration, refit and test
// evaluation.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"outcomeeval/internal/balance"
	"outcomeeval/internal/dataset"
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/models"
	"outcomeeval/internal/split"
)

// ErrNoSuccessfulFit means every grid point failed, so no model can be
// selected for the candidate.
var ErrNoSuccessfulFit = errors.New("no hyperparameter combination could be fitted")

const defaultExplainRepeats = 5

type Options struct {
	CVSplits       int
	Resampling     string
	SelectFeatures bool
	Explain        bool
	ExplainRepeats int
	RefitMetric    string
	Seed           int64
}

type Input struct {
	Candidate     models.Candidate
	Label         string
	XTrain, XTest dataset.FeatureMatrix
	YTrain, YTest []int
}

type Evaluator struct {
	opts    Options
	sampler balance.Sampler
	log     *zap.Logger
}

func New(opts Options, log *zap.Logger) (*Evaluator, error) {
	if opts.CVSplits < 1 { return nil, fmt.Errorf("cv splits must be >= 1, got %d", opts.CVSplits) }
	if opts.RefitMetric == "" { opts.RefitMetric = metrics.ROCAUC }
	if !metrics.IsScalar(opts.RefitMetric) { return nil, fmt.Errorf("unknown refit metric %q", opts.RefitMetric) }
	if opts.ExplainRepeats <= 0 { opts.ExplainRepeats = defaultExplainRepeats }
	s, err := balance.New(opts.Resampling, opts.Seed)
	if err != nil { return nil, err }
	if log == nil { log = zap.NewNop() }
	return &Evaluator{opts: opts, sampler: s, log: log}, nil
}

// prepared is a training set after balancing and feature selection, with
// the matching held-out rows.
type prepared struct {
	xTrain [][]float64
	yTrain []int
	xVal   [][]float64
	yVal   []int
	cols   []int
}

func (e *Evaluator) prepare(xTrain [][]float64, yTrain []int, xVal [][]float64, yVal []int) (prepared, error) {
	p := prepared{xTrain: xTrain, yTrain: yTrain, xVal: xVal, yVal: yVal}
	if e.sampler != nil {
		var err error
		p.xTrain, p.yTrain, err = e.sampler.Resample(xTrain, yTrain)
		if err != nil { return prepared{}, fmt.Errorf("%s: %w", e.sampler.Name(), err) }
	}
	if e.opts.SelectFeatures {
		cols, err := selectFeatures(p.xTrain, p.yTrain, e.opts.Seed)
		if err != nil { return prepared{}, fmt.Errorf("feature selection: %w", err) }
		p.cols = cols
		p.xTrain = columns(p.xTrain, cols)
		p.xVal = columns(p.xVal, cols)
	}
	return p, nil
}

// gridResult holds the out-of-fold scores of one grid point.
type gridResult struct {
	params models.Params
	scores [][]float64
	cv     float64
}

func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*TrialResult, error) {
	log := e.log.With(zap.String("label", in.Label), zap.String("model", in.Candidate.ID))
	folds, err := split.Folds(in.YTrain, e.opts.CVSplits, e.opts.Seed)
	if err != nil { return nil, err }

	prep := make([]prepared, len(folds))
	for k, f := range folds {
		xs := in.XTrain.Subset(f.Train).Rows
		xv := in.XTrain.Subset(f.Val).Rows
		prep[k], err = e.prepare(xs, pickInts(in.YTrain, f.Train), xv, pickInts(in.YTrain, f.Val))
		if err != nil { return nil, fmt.Errorf("fold %d: %w", k, err) }
	}
	loo := e.opts.CVSplits == 1

	var results []gridResult
	var skipped []models.Params
	for _, p := range in.Candidate.Grid.Points() {
		if err := ctx.Err(); err != nil { return nil, err }
		scores, err := e.crossValidate(in.Candidate, p, prep)
		if errors.Is(err, models.ErrNoConvergence) {
			log.Warn("skipping hyperparameter combination", zap.Stringer("params", p), zap.Error(err))
			skipped = append(skipped, p)
			continue
		}
		if err != nil { return nil, err }
		r := gridResult{params: p, scores: scores}
		r.cv = e.cvScore(valLabels(prep, loo), poolIf(loo, scores))
		log.Debug("grid point evaluated", zap.Stringer("params", p), zap.Float64(e.opts.RefitMetric, r.cv))
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: model %s label %s", ErrNoSuccessfulFit, in.Candidate.ID, in.Label)
	}
	best := results[0]
	for _, r := range results[1:] {
		if better(r.cv, best.cv) { best = r }
	}

	res := &TrialResult{
		Model: in.Candidate.ID, Kind: in.Candidate.Kind, Label: in.Label,
		BestParams: best.params, CVScore: best.cv, RefitMetric: e.opts.RefitMetric, Skipped: skipped,
	}
	if err := e.validation(res, valLabels(prep, loo), poolIf(loo, best.scores)); err != nil { return nil, err }

	final, err := e.prepare(in.XTrain.Rows, in.YTrain, in.XTest.Rows, in.YTest)
	if err != nil { return nil, fmt.Errorf("refit: %w", err) }
	model, err := in.Candidate.New(best.params)
	if err != nil { return nil, err }
	if err := model.Fit(final.xTrain, final.yTrain); err != nil {
		if errors.Is(err, models.ErrNoConvergence) { return nil, fmt.Errorf("%w: refit %s: %v", ErrNoSuccessfulFit, in.Candidate.ID, err) }
		return nil, fmt.Errorf("refit %s: %w", in.Candidate.ID, err)
	}
	testScores := model.PredictProba(final.xVal)
	res.Test, err = metrics.Compute(in.YTest, testScores, res.Threshold)
	if err != nil { return nil, fmt.Errorf("test metrics: %w", err) }
	res.Curves.TestROC = metrics.ROC(in.YTest, testScores)
	res.Curves.TestPR = metrics.PrecisionRecall(in.YTest, testScores)
	res.Curves.TestPrevalence = prevalence(in.YTest)

	features := in.XTrain.Columns
	if final.cols != nil {
		res.SelectedFeatures = names(in.XTrain, final.cols)
		features = res.SelectedFeatures
	}
	log.Info("model evaluated",
		zap.Stringer("params", best.params),
		zap.Float64("cv_score", best.cv),
		zap.Float64("threshold", res.Threshold),
		zap.Float64("test_f1", res.Test.Scalars[metrics.F1]),
		zap.Float64("test_roc_auc", res.Test.Scalars[metrics.ROCAUC]),
		zap.Int("skipped_params", len(skipped)))

	// Attribution runs on the finished model and never feeds back into
	// selection or thresholds.
	if e.opts.Explain {
		res.Attribution = permutationImportance(model, final.xVal, in.YTest, features, e.opts.ExplainRepeats, e.opts.Seed)
	}
	return res, nil
}

func (e *Evaluator) crossValidate(c models.Candidate, p models.Params, prep []prepared) ([][]float64, error) {
	scores := make([][]float64, len(prep))
	for k, f := range prep {
		m, err := c.New(p)
		if err != nil { return nil, err }
		if err := m.Fit(f.xTrain, f.yTrain); err != nil { return nil, fmt.Errorf("fold %d: %w", k, err) }
		scores[k] = m.PredictProba(f.xVal)
	}
	return scores, nil
}

// cvScore is the mean refit metric across folds, each fold evaluated at its
// own F1-optimal threshold. Folds where the metric is undefined are ignored.
func (e *Evaluator) cvScore(ys [][]int, scores [][]float64) float64 {
	vals := make([]float64, len(ys))
	for k := range ys {
		v, err := metrics.Compute(ys[k], scores[k], metrics.BestF1Threshold(ys[k], scores[k]))
		if err != nil {
			vals[k] = math.NaN()
			continue
		}
		vals[k] = v.Scalars[e.opts.RefitMetric]
	}
	mean, _ := metrics.MeanStd(vals)
	return mean
}

// validation fills the per-fold thresholds, metrics and curves of the
// selected grid point and derives the test operating threshold.
func (e *Evaluator) validation(res *TrialResult, ys [][]int, scores [][]float64) error {
	res.Val = ValMetrics{Scalars: map[string][]float64{}}
	var all []int
	for k := range ys {
		thr := metrics.BestF1Threshold(ys[k], scores[k])
		res.FoldThresholds = append(res.FoldThresholds, thr)
		v, err := metrics.Compute(ys[k], scores[k], thr)
		if err != nil { return fmt.Errorf("validation fold %d: %w", k, err) }
		for _, n := range metrics.ScalarNames() {
			res.Val.Scalars[n] = append(res.Val.Scalars[n], v.Scalars[n])
		}
		res.Val.Confusion = append(res.Val.Confusion, v.Confusion)
		res.Curves.ValROC = append(res.Curves.ValROC, metrics.ROC(ys[k], scores[k]))
		res.Curves.ValPR = append(res.Curves.ValPR, metrics.PrecisionRecall(ys[k], scores[k]))
		all = append(all, ys[k]...)
	}
	res.Curves.ValPrevalence = prevalence(all)
	res.Threshold = metrics.Median(res.FoldThresholds)
	return nil
}

// better reports whether a beats b; NaN never wins and ties keep b.
func better(a, b float64) bool {
	if math.IsNaN(a) { return false }
	if math.IsNaN(b) { return true }
	return a > b
}

func valLabels(prep []prepared, pool bool) [][]int {
	ys := make([][]int, len(prep))
	for k, p := range prep { ys[k] = p.yVal }
	if !pool { return ys }
	var all []int
	for _, y := range ys { all = append(all, y...) }
	return [][]int{all}
}

// poolIf merges all folds into a single one for leave-one-out, where
// per-fold metrics are undefined.
func poolIf(pool bool, scores [][]float64) [][]float64 {
	if !pool { return scores }
	var all []float64
	for _, s := range scores { all = append(all, s...) }
	return [][]float64{all}
}

func pickInts(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx { out[i] = y[j] }
	return out
}

func prevalence(y []int) float64 {
	if len(y) == 0 { return 0 }
	pos := 0
	for _, v := range y { pos += v }
	return float64(pos) / float64(len(y))
}
