package aggregate

import (
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"outcomeeval/internal/evaluate"
	"outcomeeval/internal/metrics"
)

type mockPlotter struct{ mock.Mock }

func (m *mockPlotter) Boxplot(label, metric string, data []MetricEntry) error {
	return m.Called(label, metric, data).Error(0)
}

func (m *mockPlotter) Curves(label string, results []*evaluate.TrialResult) error {
	return m.Called(label, results).Error(0)
}

func (m *mockPlotter) Attribution(label string, r *evaluate.TrialResult) error {
	return m.Called(label, r).Error(0)
}

type memorySink struct {
	records map[string]Record
	flushes int
	fail    error
}

func (s *memorySink) WriteRecord(label string, rec Record) error {
	if s.fail != nil { return s.fail }
	if s.records == nil { s.records = map[string]Record{} }
	s.records[label] = rec
	return nil
}

func (s *memorySink) WriteTables(*Tables) error {
	s.flushes++
	return nil
}

func result(model, label string, test float64) *evaluate.TrialResult {
	r := &evaluate.TrialResult{
		Model: model, Label: label,
		Val:  evaluate.ValMetrics{Scalars: map[string][]float64{}},
		Test: metrics.Values{Scalars: map[string]float64{}, Confusion: metrics.Confusion{{5, 1}, {2, 3}}},
	}
	for _, m := range metrics.ScalarNames() {
		r.Val.Scalars[m] = []float64{0.5, 0.75}
		r.Test.Scalars[m] = test
	}
	r.Val.Confusion = []metrics.Confusion{{{3, 0}, {1, 2}}, {{2, 1}, {0, 3}}}
	return r
}

func TestLabelResultsRejectsDuplicatesAndForeignLabels(t *testing.T) {
	l := NewLabelResults("leak")
	require.NoError(t, l.Add(result("knn", "leak", 0.7)))
	assert.ErrorIs(t, l.Add(result("knn", "leak", 0.8)), ErrDuplicateModel)
	assert.ErrorIs(t, l.Add(result("svc", "pneumonia", 0.8)), ErrLabelMismatch)
	assert.Equal(t, []string{"knn"}, l.Models())
}

func TestCheckRequiresFullMetricSet(t *testing.T) {
	l := NewLabelResults("leak")
	r := result("knn", "leak", 0.7)
	delete(r.Test.Scalars, metrics.MCC)
	require.NoError(t, l.Add(r))
	assert.ErrorIs(t, l.Check(), ErrMetricSet)
}

func TestMetricDataHasOneEntryPerModel(t *testing.T) {
	l := NewLabelResults("leak")
	require.NoError(t, l.Add(result("knn", "leak", 0.7)))
	require.NoError(t, l.Add(result("random_forest", "leak", 0.9)))
	data := l.MetricData(metrics.F1)
	require.Len(t, data, 2)
	assert.Equal(t, "random_forest", data[1].Model)
	assert.Equal(t, 0.9, data[1].Test)
	assert.Len(t, data[1].Val, 2)
}

func TestRecordRoundTripsConfusionMatricesAndNaN(t *testing.T) {
	l := NewLabelResults("leak")
	r := result("knn", "leak", 0.7)
	r.Test.Scalars[metrics.ROCAUC] = math.NaN()
	require.NoError(t, l.Add(r))

	b, err := json.Marshal(l.Record())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"roc_auc":{"knn":[[0.5,0.75],null]}`)

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r.Test.Confusion, back.Confusion["knn"].Test)
	assert.Equal(t, r.Val.Confusion, back.Confusion["knn"].Val)
	assert.True(t, math.IsNaN(float64(back.Scalars[metrics.ROCAUC]["knn"].Test)))
	assert.Equal(t, Float(0.7), back.Scalars[metrics.F1]["knn"].Test)
	assert.Len(t, back.Scalars, len(metrics.ScalarNames()))
}

func TestFinalizeFillsTablesAndRendersFigures(t *testing.T) {
	sink := &memorySink{}
	plot := &mockPlotter{}
	plot.On("Boxplot", "anastomotic leak", mock.Anything, mock.Anything).Return(nil)
	plot.On("Curves", "anastomotic leak", mock.Anything).Return(nil)

	a := New(sink, plot, nil)
	l := NewLabelResults("anastomotic leak")
	require.NoError(t, l.Add(result("knn", "anastomotic leak", 0.7)))
	require.NoError(t, l.Add(result("random_forest", "anastomotic leak", 0.9)))
	require.NoError(t, a.Finalize(l))

	plot.AssertNumberOfCalls(t, "Boxplot", len(metrics.ScalarNames()))
	plot.AssertNumberOfCalls(t, "Curves", 1)
	plot.AssertNotCalled(t, "Attribution", mock.Anything, mock.Anything)
	assert.Equal(t, 1, sink.flushes)
	assert.Contains(t, sink.records, "anastomotic leak")

	tables := a.Tables()
	assert.Equal(t, []string{"anastomotic_leak"}, tables.Labels())
	assert.Equal(t, []string{"knn", "random_forest"}, tables.Models())
	v, ok := tables.Value(metrics.F1, "random_forest", "anastomotic_leak")
	assert.True(t, ok)
	assert.Equal(t, 0.9, v)
	assert.NoError(t, a.Warnings())
}

func TestFinalizeCollectsPlotFailures(t *testing.T) {
	plot := &mockPlotter{}
	plot.On("Boxplot", mock.Anything, metrics.MCC, mock.Anything).Return(errors.New("bad range"))
	plot.On("Boxplot", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	plot.On("Curves", mock.Anything, mock.Anything).Return(nil)
	plot.On("Attribution", mock.Anything, mock.Anything).Return(errors.New("no font"))

	a := New(&memorySink{}, plot, nil)
	l := NewLabelResults("leak")
	r := result("knn", "leak", 0.7)
	r.Attribution = []evaluate.Attribution{{Feature: "age", Mean: 0.1}}
	require.NoError(t, l.Add(r))
	require.NoError(t, a.Finalize(l))

	require.Error(t, a.Warnings())
	assert.Contains(t, a.Warnings().Error(), "boxplot mcc")
	assert.Contains(t, a.Warnings().Error(), "attribution knn")
	v, ok := a.Tables().Value(metrics.MCC, "knn", "leak")
	assert.True(t, ok)
	assert.Equal(t, 0.7, v)
}

func TestFinalizeReturnsSinkErrors(t *testing.T) {
	a := New(&memorySink{fail: errors.New("disk full")}, nil, nil)
	l := NewLabelResults("leak")
	require.NoError(t, l.Add(result("knn", "leak", 0.7)))
	assert.ErrorContains(t, a.Finalize(l), "disk full")
}

func TestTablesAccumulateAcrossLabels(t *testing.T) {
	a := New(&memorySink{}, nil, nil)
	for _, label := range []string{"leak", "pneumonia"} {
		l := NewLabelResults(label)
		require.NoError(t, l.Add(result("knn", label, 0.6)))
		require.NoError(t, l.Add(result("logistic_regression", label, 0.8)))
		require.NoError(t, a.Finalize(l))
	}
	tables := a.Tables()
	assert.Equal(t, []string{"leak", "pneumonia"}, tables.Labels())
	assert.Len(t, tables.Models(), 2)
	assert.ElementsMatch(t, metrics.ScalarNames(), tables.Metrics())
}

func TestFinalizeWithOnlySkippedModels(t *testing.T) {
	sink := &memorySink{}
	a := New(sink, nil, nil)
	l := NewLabelResults("rare")
	l.Skip("knn", errors.New("too few positives"))
	require.NoError(t, a.Finalize(l))
	assert.Empty(t, sink.records)
	assert.Empty(t, a.Tables().Models())
}
