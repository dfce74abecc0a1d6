package aggregate

import (
	"sort"
	"strings"
)

// ColumnName is the table column of a label: spaces become underscores.
func ColumnName(label string) string { return strings.ReplaceAll(label, " ", "_") }

// Tables are the run-scoped metric tables: one per scalar metric, rows are
// model IDs, columns are label names, cells are test values. Rows and
// columns keep first-insertion order.
type Tables struct {
	metrics []string
	models  []string
	labels  []string
	cells   map[string]map[string]map[string]float64
}

func NewTables(metricNames []string) *Tables {
	t := &Tables{metrics: append([]string(nil), metricNames...), cells: map[string]map[string]map[string]float64{}}
	for _, m := range metricNames { t.cells[m] = map[string]map[string]float64{} }
	return t
}

func (t *Tables) Set(metric, model, label string, v float64) {
	byModel, ok := t.cells[metric]
	if !ok {
		byModel = map[string]map[string]float64{}
		t.cells[metric] = byModel
		t.metrics = append(t.metrics, metric)
	}
	col := ColumnName(label)
	if !contains(t.models, model) { t.models = append(t.models, model) }
	if !contains(t.labels, col) { t.labels = append(t.labels, col) }
	if byModel[model] == nil { byModel[model] = map[string]float64{} }
	byModel[model][col] = v
}

func (t *Tables) Metrics() []string { return append([]string(nil), t.metrics...) }
func (t *Tables) Models() []string  { return append([]string(nil), t.models...) }
func (t *Tables) Labels() []string  { return append([]string(nil), t.labels...) }

// Value returns the cell for (metric, model, label column). ok is false for
// cells never set, e.g. a model skipped on that label.
func (t *Tables) Value(metric, model, column string) (float64, bool) {
	v, ok := t.cells[metric][model][column]
	return v, ok
}

// Sorted returns the metric names in lexical order.
func (t *Tables) Sorted() []string {
	out := t.Metrics()
	sort.Strings(out)
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s { return true }
	}
	return false
}
