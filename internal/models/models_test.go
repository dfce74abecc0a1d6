package models

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable returns two gaussian blobs, positives shifted along feature 0.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		y[i] = i % 3 / 2
		shift := 0.0
		if y[i] == 1 { shift = 4 }
		X[i] = []float64{rng.NormFloat64() + shift, rng.NormFloat64()}
	}
	return X, y
}

func accuracy(y, p []int) float64 {
	c := 0
	for i := range y { if y[i] == p[i] { c++ } }
	return float64(c) / float64(len(y))
}

func TestEstimatorsLearnSeparableData(t *testing.T) {
	X, y := separable(150, 1)
	estimators := []Model{
		NewLogisticRegression(),
		NewDecisionTree(),
		NewRandomForest(),
		NewBagging(),
		NewGradientBoosting(),
		NewKNN(5),
		NewNaiveBayes(1e-9),
	}
	for _, m := range estimators {
		t.Run(m.Name(), func(t *testing.T) {
			require.NoError(t, m.Fit(X, y))
			ps := m.PredictProba(X)
			require.Len(t, ps, len(X))
			for _, p := range ps {
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
			assert.Greater(t, accuracy(y, m.Predict(X)), 0.9)
		})
	}
}

func TestSeededEnsemblesAreDeterministic(t *testing.T) {
	X, y := separable(90, 2)
	a, b := NewRandomForest(), NewRandomForest()
	a.Seed, b.Seed = 7, 7
	a.NEstimators, b.NEstimators = 10, 10
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.PredictProba(X), b.PredictProba(X))
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
}

func TestTreeImportancesFavourInformativeFeature(t *testing.T) {
	X, y := separable(120, 3)
	dt := NewDecisionTree()
	require.NoError(t, dt.Fit(X, y))
	imp := dt.FeatureImportances()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
}

func TestSampleWeightsBalanced(t *testing.T) {
	y := []int{1, 0, 0, 0}
	w := sampleWeights(y, Balanced)
	assert.InDelta(t, 2.0, w[0], 1e-12)
	assert.InDelta(t, 4.0/6.0, w[1], 1e-12)
	assert.Equal(t, []float64{1, 1, 1, 1}, sampleWeights(y, NoClassWeight))
	assert.Equal(t, []float64{1, 1}, sampleWeights([]int{0, 0}, Balanced))
}

func TestLogisticRegressionDivergenceIsReported(t *testing.T) {
	X, y := separable(30, 4)
	m := NewLogisticRegression()
	m.LearningRate = 1e300
	err := m.Fit(X, y)
	assert.ErrorIs(t, err, ErrNoConvergence)
}

func TestGridPointsOrder(t *testing.T) {
	g := Grid{"b": {1, 2}, "a": {10, 20}}
	pts := g.Points()
	require.Len(t, pts, 4)
	assert.Equal(t, Params{"a": 10, "b": 1}, pts[0])
	assert.Equal(t, Params{"a": 10, "b": 2}, pts[1])
	assert.Equal(t, Params{"a": 20, "b": 1}, pts[2])
	assert.Equal(t, "{a=20, b=2}", pts[3].String())

	assert.Equal(t, []Params{{}}, Grid{}.Points())
}

func TestParamsAccessors(t *testing.T) {
	p := Params{"max_depth": 3.6, "distance_weighted": 1}
	assert.Equal(t, 4, p.Int("max_depth", 0))
	assert.Equal(t, 9, p.Int("missing", 9))
	assert.True(t, p.Bool("distance_weighted", false))
	assert.Equal(t, 0.5, p.Float("missing", 0.5))
}

func TestCatalogRejectsDuplicateIDs(t *testing.T) {
	_, err := NewCatalog(
		Candidate{ID: "rf", Kind: KindRandomForest},
		Candidate{ID: "rf", Kind: KindRandomForest, Grid: Grid{"max_depth": {3}}},
	)
	assert.ErrorIs(t, err, ErrDuplicateCandidate)

	_, err = NewCatalog(Candidate{ID: "svm", Kind: "svm"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDefaultCatalogThreadsClassWeightAndSeed(t *testing.T) {
	cat := DefaultCatalog(true, 11)
	ids := cat.IDs()
	assert.Contains(t, ids, "random_forest")
	for _, c := range cat.Candidates() {
		m, err := c.New(c.Grid.Points()[0])
		require.NoError(t, err)
		switch est := m.(type) {
		case *RandomForest:
			assert.Equal(t, Balanced, est.ClassWeight)
			assert.Equal(t, int64(11), est.Seed)
		case *LogisticRegression:
			assert.Equal(t, Balanced, est.ClassWeight)
		case *KNN:
			assert.False(t, SupportsClassWeight(c.Kind))
		}
	}
}

func TestLoadCatalogYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(`candidates:
  - id: lr
    kind: logistic_regression
    grid:
      c: [0.1, 1.0]
  - kind: gaussian_nb
`), 0o644))
	cat, err := LoadCatalog(yml, false, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"lr", "gaussian_nb"}, cat.IDs())
	assert.Len(t, cat.Candidates()[0].Grid.Points(), 2)

	tml := filepath.Join(dir, "catalog.toml")
	require.NoError(t, os.WriteFile(tml, []byte(`
[[candidates]]
id = "forest"
kind = "random_forest"
[candidates.grid]
n_estimators = [10.0]
max_depth = [2.0, 3.0]
`), 0o644))
	cat, err = LoadCatalog(tml, true, 3)
	require.NoError(t, err)
	c := cat.Candidates()[0]
	assert.Equal(t, Balanced, c.ClassWeight)
	assert.Len(t, c.Grid.Points(), 2)

	_, err = LoadCatalog(filepath.Join(dir, "catalog.json"), false, 0)
	assert.Error(t, err)
}
