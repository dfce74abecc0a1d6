package split

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"outcomeeval/internal/dataset"
)

func ratio(y []int, idx []int) float64 {
	pos := 0
	for _, i := range idx { pos += y[i] }
	return float64(pos) / float64(len(idx))
}

func TestStratifiedPreservesClassRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		n := 10 + rng.Intn(300)
		prev := 0.05 + 0.5*rng.Float64()
		y := make([]int, n)
		for i := range y {
			if rng.Float64() < prev { y[i] = 1 }
		}
		y[0], y[1], y[2], y[3] = 1, 1, 0, 0
		frac := 0.05 + 0.9*rng.Float64()
		all := make([]int, n)
		for i := range all { all[i] = i }

		train, test, err := Stratified(y, frac, int64(trial))
		require.NoError(t, err)
		assert.Len(t, append(append([]int(nil), train...), test...), n)
		assert.Empty(t, intersect(train, test))
		assert.LessOrEqual(t, math.Abs(ratio(y, test)-ratio(y, all)), 1/float64(len(test))+1e-12,
			"trial %d n=%d frac=%.2f", trial, n, frac)
	}
}

func TestStratifiedRejectsSingletonClass(t *testing.T) {
	_, _, err := Stratified([]int{0, 0, 0, 1}, 0.25, 1)
	assert.Error(t, err)
	_, _, err = Stratified([]int{0, 1, 0, 1}, 1, 1)
	assert.Error(t, err)
}

func TestStratifiedIsDeterministic(t *testing.T) {
	y := []int{0, 1, 0, 0, 1, 0, 1, 0, 0, 0, 1, 0}
	a1, b1, _ := Stratified(y, 0.3, 42)
	a2, b2, _ := Stratified(y, 0.3, 42)
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
}

func TestStratifiedKFold(t *testing.T) {
	y := make([]int, 53)
	for i := range y {
		if i%4 == 0 { y[i] = 1 }
	}
	folds, err := StratifiedKFold(y, 5, 3)
	require.NoError(t, err)
	require.Len(t, folds, 5)
	seen := map[int]int{}
	for _, f := range folds {
		assert.Len(t, f.Train, len(y)-len(f.Val))
		assert.Empty(t, intersect(f.Train, f.Val))
		assert.InDelta(t, len(y)/5, len(f.Val), 1)
		assert.InDelta(t, ratio(y, f.Val), 14.0/53, 0.1)
		for _, i := range f.Val { seen[i]++ }
	}
	assert.Len(t, seen, len(y))

	_, err = StratifiedKFold(y, 1, 3)
	assert.Error(t, err)
	_, err = StratifiedKFold(y[:3], 5, 3)
	assert.Error(t, err)
}

func TestFoldsLeaveOneOut(t *testing.T) {
	folds, err := Folds([]int{0, 1, 0, 1}, 1, 0)
	require.NoError(t, err)
	require.Len(t, folds, 4)
	assert.Equal(t, Fold{Train: []int{0, 2, 3}, Val: []int{1}}, folds[1])
}

func TestReconcileDropsExtraColumnsWithWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	train := dataset.FeatureMatrix{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}}}
	val := dataset.FeatureMatrix{Columns: []string{"b", "extra", "a"}, Rows: [][]float64{{20, 9, 10}}}

	got, err := Reconcile(train, val, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Columns)
	assert.Equal(t, [][]float64{{10, 20}}, got.Rows)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, []interface{}{"extra"}, logs.All()[0].ContextMap()["columns"])
}

func TestReconcileSchemaMismatch(t *testing.T) {
	train := dataset.FeatureMatrix{Columns: []string{"a", "b"}}
	val := dataset.FeatureMatrix{Columns: []string{"a"}}
	_, err := Reconcile(train, val, nil)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestResolveModes(t *testing.T) {
	x := dataset.FeatureMatrix{Columns: []string{"a"}}
	y := dataset.LabelMatrix{Columns: []string{"leak"}}
	for i := 0; i < 20; i++ {
		x.Rows = append(x.Rows, []float64{float64(i)})
		y.Rows = append(y.Rows, []int{i % 2})
	}
	s, err := Internal(0.2, 1).Resolve(x, y, "leak")
	require.NoError(t, err)
	assert.Len(t, s.XTest.Rows, 4)
	assert.Len(t, s.YTrain, 16)
	assert.Equal(t, x.Columns, s.XTest.Columns)

	xv := dataset.FeatureMatrix{Columns: []string{"a", "new"}, Rows: [][]float64{{1, 1}, {2, 0}}}
	yv := dataset.LabelMatrix{Columns: []string{"leak"}, Rows: [][]int{{1}, {0}}}
	r, err := External(x, xv, yv, nil)
	require.NoError(t, err)
	assert.True(t, r.External())
	s, err = r.Resolve(x, y, "leak")
	require.NoError(t, err)
	assert.Equal(t, x.Columns, s.XTest.Columns)
	assert.Equal(t, []int{1, 0}, s.YTest)
	assert.Len(t, s.XTrain.Rows, 20)

	_, err = r.Resolve(x, y, "missing")
	assert.Error(t, err)
}

func intersect(a, b []int) []int {
	in := map[int]bool{}
	for _, v := range a { in[v] = true }
	var out []int
	for _, v := range b {
		if in[v] { out = append(out, v) }
	}
	return out
}
