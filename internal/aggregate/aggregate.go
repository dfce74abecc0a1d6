// Package aggregate collects the per-label trial results of every model
// candidate, checks they are comparable, and fans them out to persistence,
// plotting and the run-scoped metric tables.
package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"outcomeeval/internal/evaluate"
	"outcomeeval/internal/metrics"
)

var (
	ErrDuplicateModel = errors.New("duplicate model result")
	ErrLabelMismatch  = errors.New("result belongs to another label")
	ErrMetricSet      = errors.New("inconsistent metric set")
)

// Skipped is a model that produced no result for a label.
type Skipped struct {
	Model string
	Err   error
}

// LabelResults holds the trial results of one label keyed by model ID, in
// insertion order.
type LabelResults struct {
	Label   string
	order   []string
	results map[string]*evaluate.TrialResult
	skipped []Skipped
}

func NewLabelResults(label string) *LabelResults {
	return &LabelResults{Label: label, results: map[string]*evaluate.TrialResult{}}
}

func (l *LabelResults) Add(r *evaluate.TrialResult) error {
	if r.Label != l.Label { return fmt.Errorf("%w: %q into %q", ErrLabelMismatch, r.Label, l.Label) }
	if _, ok := l.results[r.Model]; ok { return fmt.Errorf("%w: %s on %s", ErrDuplicateModel, r.Model, l.Label) }
	l.results[r.Model] = r
	l.order = append(l.order, r.Model)
	return nil
}

func (l *LabelResults) Skip(model string, err error) { l.skipped = append(l.skipped, Skipped{model, err}) }

func (l *LabelResults) Models() []string { return append([]string(nil), l.order...) }

func (l *LabelResults) Skipped() []Skipped { return l.skipped }

func (l *LabelResults) Len() int { return len(l.order) }

func (l *LabelResults) Result(model string) *evaluate.TrialResult { return l.results[model] }

func (l *LabelResults) Results() []*evaluate.TrialResult {
	out := make([]*evaluate.TrialResult, len(l.order))
	for i, id := range l.order { out[i] = l.results[id] }
	return out
}

// MetricEntry is one model's per-fold validation values and test value for
// a scalar metric.
type MetricEntry struct {
	Model string
	Val   []float64
	Test  float64
}

// MetricData returns the boxplot input for metric m, one entry per model.
func (l *LabelResults) MetricData(m string) []MetricEntry {
	out := make([]MetricEntry, 0, len(l.order))
	for _, r := range l.Results() {
		out = append(out, MetricEntry{Model: r.Model, Val: r.Val.Scalars[m], Test: r.Test.Scalars[m]})
	}
	return out
}

// Record converts the results into the persisted raw form.
func (l *LabelResults) Record() Record {
	rec := Record{Scalars: map[string]map[string]ScalarEntry{}, Confusion: map[string]ConfusionEntry{}}
	for _, m := range metrics.ScalarNames() { rec.Scalars[m] = map[string]ScalarEntry{} }
	for _, r := range l.Results() {
		for _, m := range metrics.ScalarNames() {
			rec.Scalars[m][r.Model] = ScalarEntry{Val: floats(r.Val.Scalars[m]), Test: Float(r.Test.Scalars[m])}
		}
		rec.Confusion[r.Model] = ConfusionEntry{Val: r.Val.Confusion, Test: r.Test.Confusion}
	}
	return rec
}

// Check verifies every model reports the full metric enumeration on both
// partitions, so every metric table has the same model set.
func (l *LabelResults) Check() error {
	for _, r := range l.Results() {
		if !equal(r.Val.Names(), metrics.Names) || !equal(r.Test.Names(), metrics.Names) {
			return fmt.Errorf("%w: model %s label %s: val %v test %v", ErrMetricSet, r.Model, l.Label, r.Val.Names(), r.Test.Names())
		}
	}
	return nil
}

// Plotter renders the per-label figures.
type Plotter interface {
	Boxplot(label, metric string, data []MetricEntry) error
	Curves(label string, results []*evaluate.TrialResult) error
	Attribution(label string, r *evaluate.TrialResult) error
}

// Sink persists the per-label record and the run-scoped tables.
type Sink interface {
	WriteRecord(label string, rec Record) error
	WriteTables(t *Tables) error
}

// Aggregator owns the run-scoped metric tables and is finalized once per
// label. It is not safe for concurrent use.
type Aggregator struct {
	tables   *Tables
	sink     Sink
	plot     Plotter
	log      *zap.Logger
	warnings error
}

// New returns an Aggregator. plot may be nil to disable figures.
func New(sink Sink, plot Plotter, log *zap.Logger) *Aggregator {
	if log == nil { log = zap.NewNop() }
	return &Aggregator{tables: NewTables(metrics.ScalarNames()), sink: sink, plot: plot, log: log}
}

func (a *Aggregator) Tables() *Tables { return a.tables }

// Warnings returns the combined non-fatal failures of every finalized label.
func (a *Aggregator) Warnings() error { return a.warnings }

// Finalize persists the label's record, updates and flushes the metric
// tables, then renders the figures. Plot failures are logged and collected
// in Warnings; persistence failures are returned.
func (a *Aggregator) Finalize(l *LabelResults) error {
	log := a.log.With(zap.String("label", l.Label))
	if err := l.Check(); err != nil { return err }
	for _, s := range l.skipped {
		log.Warn("model skipped", zap.String("model", s.Model), zap.Error(s.Err))
	}
	if l.Len() == 0 {
		log.Warn("no model results for label")
		return nil
	}
	if err := a.sink.WriteRecord(l.Label, l.Record()); err != nil { return fmt.Errorf("label %s: write record: %w", l.Label, err) }
	for _, r := range l.Results() {
		for _, m := range metrics.ScalarNames() { a.tables.Set(m, r.Model, l.Label, r.Test.Scalars[m]) }
	}
	if err := a.sink.WriteTables(a.tables); err != nil { return fmt.Errorf("label %s: write tables: %w", l.Label, err) }
	if a.plot != nil { a.render(l, log) }
	log.Info("label finalized", zap.Strings("models", l.Models()), zap.Int("skipped", len(l.skipped)))
	return nil
}

func (a *Aggregator) render(l *LabelResults, log *zap.Logger) {
	var errs error
	for _, m := range metrics.ScalarNames() {
		if err := a.plot.Boxplot(l.Label, m, l.MetricData(m)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("boxplot %s: %w", m, err))
		}
	}
	if err := a.plot.Curves(l.Label, l.Results()); err != nil { errs = multierr.Append(errs, fmt.Errorf("curves: %w", err)) }
	for _, r := range l.Results() {
		if r.Attribution == nil { continue }
		if err := a.plot.Attribution(l.Label, r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("attribution %s: %w", r.Model, err))
		}
	}
	if errs == nil { return }
	log.Warn("plot rendering failed", zap.Errors("errors", multierr.Errors(errs)))
	a.warnings = multierr.Append(a.warnings, fmt.Errorf("label %s: %w", l.Label, errs))
}

func equal(a, b []string) bool {
	if len(a) != len(b) { return false }
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] { return false }
	}
	return true
}
