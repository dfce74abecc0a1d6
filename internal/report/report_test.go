package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"outcomeeval/internal/aggregate"
	"outcomeeval/internal/config"
	"outcomeeval/internal/evaluate"
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/models"
)

func trial(model, label string) *evaluate.TrialResult {
	y := []int{0, 0, 1, 1, 0, 1}
	s := []float64{0.1, 0.4, 0.35, 0.8, 0.2, 0.9}
	r := &evaluate.TrialResult{
		Model: model, Label: label, BestParams: models.Params{"c": 1}, CVScore: 0.81,
		RefitMetric: metrics.ROCAUC, Threshold: 0.35, FoldThresholds: []float64{0.3, 0.4},
		Val: evaluate.ValMetrics{Scalars: map[string][]float64{}},
	}
	v, _ := metrics.Compute(y, s, 0.35)
	r.Test = v
	for _, n := range metrics.ScalarNames() { r.Val.Scalars[n] = []float64{v.Scalars[n], v.Scalars[n]} }
	r.Val.Confusion = []metrics.Confusion{v.Confusion, v.Confusion}
	roc, pr := metrics.ROC(y, s), metrics.PrecisionRecall(y, s)
	r.Curves = evaluate.Curves{
		ValROC: []metrics.Curve{roc, roc}, ValPR: []metrics.Curve{pr, pr},
		TestROC: roc, TestPR: pr, TestPrevalence: 0.5, ValPrevalence: 0.5,
	}
	return r
}

func TestStoreWritesRecordAndTables(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root, nil)
	require.NoError(t, err)

	l := aggregate.NewLabelResults("anastomotic leak")
	require.NoError(t, l.Add(trial("knn", "anastomotic leak")))
	require.NoError(t, l.Add(trial("random_forest", "anastomotic leak")))
	require.NoError(t, s.WriteRecord(l.Label, l.Record()))

	rec, err := ReadRecord(root, "anastomotic leak")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"knn", "random_forest"}, rec.Models(metrics.F1))
	assert.Equal(t, metrics.Confusion{{2, 1}, {0, 3}}, rec.Confusion["knn"].Test)

	tables := aggregate.NewTables(metrics.ScalarNames())
	tables.Set(metrics.F1, "knn", "anastomotic leak", 0.75)
	tables.Set(metrics.F1, "random_forest", "pneumonia", 0.5)
	require.NoError(t, s.WriteTables(tables))

	rows, err := ReadTable(root, metrics.F1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"", "anastomotic_leak", "pneumonia"},
		{"knn", "0.75", ""},
		{"random_forest", "", "0.5"},
	}, rows)

	for _, m := range metrics.ScalarNames() {
		assert.FileExists(t, filepath.Join(root, TablesDir, m+".csv"))
	}
	assert.NoFileExists(t, filepath.Join(root, TablesDir, metrics.ConfusionMatrix+".csv"))

	wb, err := excelize.OpenFile(filepath.Join(root, TablesDir, WorkbookFile))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, tables.Metrics(), wb.GetSheetList())
	v, err := wb.GetCellValue(metrics.F1, "B2")
	require.NoError(t, err)
	assert.Equal(t, "0.75", v)
}

func TestSummaryRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root, nil)
	require.NoError(t, err)
	in := Summary{RunID: "abc", Dataset: "cohort", Started: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Labels: []string{"leak"}}
	require.NoError(t, s.WriteSummary(in))
	out, err := ReadSummary(root)
	require.NoError(t, err)
	assert.Equal(t, in.RunID, out.RunID)
	assert.True(t, in.Started.Equal(out.Started))
	assert.Equal(t, in.Labels, out.Labels)
}

func TestTrialLogAppends(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Dataset = "cohort"
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	log, err := OpenTrialLog(dir, cfg, "run-1", now)
	require.NoError(t, err)
	require.NoError(t, log.Label("leak", []*evaluate.TrialResult{trial("knn", "leak")}, []aggregate.Skipped{{Model: "svc", Err: errors.New("too few positives")}}))
	require.NoError(t, log.Failure("pneumonia", "knn", errors.New("diverged")))

	// a second trial appends to the same file
	_, err = OpenTrialLog(dir, cfg, "run-2", now)
	require.NoError(t, err)

	b, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	text := string(b)
	assert.Equal(t, 2, strings.Count(text, "========== New Trial at 17.10.2026 09:30:00 =========="))
	assert.Contains(t, text, "dataset: cohort")
	assert.Contains(t, text, "=====\nleak\n=====\nknn: {c=1} roc_auc=0.8100 threshold=0.3500\n")
	assert.Contains(t, text, "svc: skipped: too few positives")
	assert.Contains(t, text, "knn: failed: diverged")
	assert.Contains(t, text, "run_id: run-2")
}

func TestRendererWritesFigures(t *testing.T) {
	root := t.TempDir()
	r := NewRenderer(root, nil)
	results := []*evaluate.TrialResult{trial("knn", "leak"), trial("random_forest", "leak")}
	l := aggregate.NewLabelResults("leak")
	for _, res := range results { require.NoError(t, l.Add(res)) }

	require.NoError(t, r.Boxplot("leak", metrics.MCC, l.MetricData(metrics.MCC)))
	require.NoError(t, r.Curves("leak", results))
	results[0].Attribution = []evaluate.Attribution{{Feature: "age", Mean: 0.01}, {Feature: "bmi", Mean: 0.2, Std: 0.05}}
	require.NoError(t, r.Attribution("leak", results[0]))

	for _, f := range []string{"boxplots/mcc.png", "val_roc.png", "val_pr.png", "test_roc.png", "test_pr.png", "roc_pr.png", "attribution/knn.png"} {
		assert.FileExists(t, filepath.Join(root, "leak", f))
	}
	b, err := os.ReadFile(filepath.Join(root, "leak", "attribution", "knn.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "feature,mean,std\nbmi,0.2,0.05\nage,0.01,0\n"))
}

func TestYMin(t *testing.T) {
	assert.Equal(t, -1.0, YMin(metrics.MCC))
	assert.Equal(t, 0.0, YMin(metrics.F1))
}
