package evaluate

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outcomeeval/internal/balance"
	"outcomeeval/internal/config"
	"outcomeeval/internal/dataset"
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/models"
	"outcomeeval/internal/split"
)

// cohort has two informative columns and one noise column.
func cohort(n int, prevalence float64, seed int64) (dataset.FeatureMatrix, []int) {
	rng := rand.New(rand.NewSource(seed))
	m := dataset.FeatureMatrix{Columns: []string{"signal", "weak", "noise"}}
	y := make([]int, n)
	for i := 0; i < n; i++ {
		if rng.Float64() < prevalence { y[i] = 1 }
		shift := 2 * float64(y[i])
		m.Rows = append(m.Rows, []float64{shift + rng.NormFloat64(), 0.5*shift + rng.NormFloat64(), rng.NormFloat64()})
	}
	return m, y
}

func input(t *testing.T, c models.Candidate, n int, prevalence float64) Input {
	x, y := cohort(n, prevalence, 5)
	yl := dataset.LabelMatrix{Columns: []string{"leak"}}
	for _, v := range y { yl.Rows = append(yl.Rows, []int{v}) }
	s, err := split.Internal(0.2, 42).Resolve(x, yl, "leak")
	require.NoError(t, err)
	return Input{Candidate: c, Label: "leak", XTrain: s.XTrain, YTrain: s.YTrain, XTest: s.XTest, YTest: s.YTest}
}

func lr(grid models.Grid) models.Candidate {
	return models.Candidate{ID: "logistic_regression", Kind: models.KindLogisticRegression, Grid: grid, Seed: 42}
}

func TestEvaluateProducesCompleteResult(t *testing.T) {
	e, err := New(Options{CVSplits: 5, Seed: 42}, nil)
	require.NoError(t, err)
	res, err := e.Evaluate(context.Background(), input(t, lr(models.Grid{"c": {0.1, 1}}), 200, 0.3))
	require.NoError(t, err)

	assert.Equal(t, "logistic_regression", res.Model)
	assert.Equal(t, metrics.Names, res.Val.Names())
	assert.Equal(t, metrics.Names, res.Test.Names())
	for _, n := range metrics.ScalarNames() { assert.Len(t, res.Val.Scalars[n], 5, n) }
	assert.Len(t, res.Val.Confusion, 5)
	assert.Len(t, res.FoldThresholds, 5)
	assert.Equal(t, metrics.Median(res.FoldThresholds), res.Threshold)
	assert.Len(t, res.Curves.ValROC, 5)
	assert.Len(t, res.Curves.ValPR, 5)
	assert.NotEmpty(t, res.Curves.TestROC.X)
	assert.Greater(t, res.Test.Scalars[metrics.ROCAUC], 0.8)
	assert.Greater(t, res.CVScore, 0.8)
	assert.Contains(t, []float64{0.1, 1}, res.BestParams["c"])
	assert.Nil(t, res.SelectedFeatures)
	assert.Nil(t, res.Attribution)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	c := models.Candidate{ID: "random_forest", Kind: models.KindRandomForest, Grid: models.Grid{"n_estimators": {10}, "max_depth": {2, 4}}, Seed: 7}
	e, err := New(Options{CVSplits: 3, Seed: 7, Resampling: config.BalanceSMOTE, SelectFeatures: true}, nil)
	require.NoError(t, err)
	a, err := e.Evaluate(context.Background(), input(t, c, 150, 0.25))
	require.NoError(t, err)
	b, err := e.Evaluate(context.Background(), input(t, c, 150, 0.25))
	require.NoError(t, err)
	assert.Equal(t, a.BestParams, b.BestParams)
	assert.Equal(t, a.FoldThresholds, b.FoldThresholds)
	assert.Equal(t, a.Threshold, b.Threshold)
	assert.Equal(t, a.Test, b.Test)
	assert.Contains(t, a.SelectedFeatures, "signal")
}

func TestLeaveOneOutPoolsPredictions(t *testing.T) {
	e, err := New(Options{CVSplits: 1, Seed: 1}, nil)
	require.NoError(t, err)
	in := input(t, models.Candidate{ID: "gaussian_nb", Kind: models.KindNaiveBayes}, 40, 0.4)
	res, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, res.FoldThresholds, 1)
	assert.Len(t, res.Val.Scalars[metrics.ROCAUC], 1)
	assert.Equal(t, len(in.YTrain), sum(res.Val.Confusion[0]))
}

func TestDivergingGridPointsAreSkipped(t *testing.T) {
	e, err := New(Options{CVSplits: 3, Seed: 1}, nil)
	require.NoError(t, err)
	res, err := e.Evaluate(context.Background(), input(t, lr(models.Grid{"learning_rate": {1e300, 0.1}}), 120, 0.3))
	require.NoError(t, err)
	assert.Equal(t, 0.1, res.BestParams["learning_rate"])
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 1e300, res.Skipped[0]["learning_rate"])
}

func TestNoSuccessfulFit(t *testing.T) {
	e, err := New(Options{CVSplits: 3, Seed: 1}, nil)
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), input(t, lr(models.Grid{"learning_rate": {1e300}}), 120, 0.3))
	assert.ErrorIs(t, err, ErrNoSuccessfulFit)
}

func TestInsufficientMinorityIsReported(t *testing.T) {
	e, err := New(Options{CVSplits: 5, Seed: 1, Resampling: config.BalanceSMOTE}, nil)
	require.NoError(t, err)
	x := dataset.FeatureMatrix{Columns: []string{"a"}}
	y := make([]int, 40)
	for i := range y {
		x.Rows = append(x.Rows, []float64{float64(i)})
		if i < 4 { y[i] = 1 }
	}
	_, err = e.Evaluate(context.Background(), Input{
		Candidate: models.Candidate{ID: "gaussian_nb", Kind: models.KindNaiveBayes},
		Label:     "rare", XTrain: x, YTrain: y, XTest: x, YTest: y,
	})
	assert.ErrorIs(t, err, balance.ErrUnsupportedDistribution)
}

func TestExplainRanksSignalFirst(t *testing.T) {
	e, err := New(Options{CVSplits: 3, Seed: 3, Explain: true}, nil)
	require.NoError(t, err)
	res, err := e.Evaluate(context.Background(), input(t, lr(nil), 300, 0.4))
	require.NoError(t, err)
	require.Len(t, res.Attribution, 3)
	assert.Equal(t, "signal", res.Attribution[0].Feature)
	assert.Greater(t, res.Attribution[0].Mean, res.Attribution[2].Mean)
}

func TestEvaluateHonoursCancellation(t *testing.T) {
	e, err := New(Options{CVSplits: 3, Seed: 1}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, input(t, lr(nil), 60, 0.3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{CVSplits: 0}, nil)
	assert.Error(t, err)
	_, err = New(Options{CVSplits: 5, RefitMetric: "confusion_matrix"}, nil)
	assert.Error(t, err)
	_, err = New(Options{CVSplits: 5, Resampling: "tomek"}, nil)
	assert.Error(t, err)
}

func TestBetterIgnoresNaN(t *testing.T) {
	assert.False(t, better(math.NaN(), 0.5))
	assert.True(t, better(0.5, math.NaN()))
	assert.False(t, better(0.5, 0.5))
}

func sum(c metrics.Confusion) int { return c.TN() + c.FP() + c.FN() + c.TP() }
