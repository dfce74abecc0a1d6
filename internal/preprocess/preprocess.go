// Package preprocess turns raw dataset tables into numeric feature and
// label matrices. Every statistic is fitted on the training table and
// re-applied unchanged to the external validation table.
package preprocess

import (
	"fmt"

	"go.uber.org/zap"

	"outcomeeval/internal/config"
	"outcomeeval/internal/dataset"
)

type Options struct {
	Selectors            []string
	MissingThreshold     float64
	CorrelationThreshold float64
	Imputer              string
	Normaliser           string
	Categorical          []string
}

func OptionsFrom(c config.Config, categorical []string) Options {
	return Options{
		Selectors:            c.FeatureSelectors,
		MissingThreshold:     c.MissingThreshold,
		CorrelationThreshold: c.CorrelationThreshold,
		Imputer:              c.Imputer,
		Normaliser:           c.Normaliser,
		Categorical:          categorical,
	}
}

type Preprocessor struct {
	opts Options
	log  *zap.Logger

	fitted  bool
	cols    []column
	dropped []string
	imp     imputer
	scale   *scaler
}

func New(opts Options, log *zap.Logger) *Preprocessor {
	if log == nil { log = zap.NewNop() }
	return &Preprocessor{opts: opts, log: log}
}

func (p *Preprocessor) enabled(sel string) bool {
	for _, s := range p.opts.Selectors {
		if s == sel { return true }
	}
	return false
}

// FitTransform fits selectors, encoders, imputer and normaliser on t.
func (p *Preprocessor) FitTransform(t dataset.Table, labels []string) (dataset.FeatureMatrix, dataset.LabelMatrix, error) {
	y, err := parseLabels(t, labels)
	if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }
	features := featureNames(t, labels)

	if p.enabled(SelectMissing) {
		drop := missingColumns(t, features, p.opts.MissingThreshold)
		if len(drop) > 0 { p.log.Info("columns with missing values dropped", zap.Strings("columns", drop)) }
		features = without(features, drop)
	}
	if p.enabled(SelectSingleUnique) {
		drop := singleUniqueColumns(t, features)
		if len(drop) > 0 { p.log.Info("single unique value columns dropped", zap.Strings("columns", drop)) }
		features = without(features, drop)
	}
	p.cols = inferColumns(t, features, p.opts.Categorical)
	m, err := encode(t, p.cols)
	if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }

	p.dropped = nil
	if p.enabled(SelectCollinear) {
		p.dropped = collinearColumns(m, p.opts.CorrelationThreshold)
		if len(p.dropped) > 0 { p.log.Info("collinear columns dropped", zap.Strings("columns", p.dropped)) }
		m = dropColumns(m, p.dropped)
	}
	if len(m.Columns) == 0 { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, fmt.Errorf("no feature columns left after selection") }

	p.imp, err = newImputer(p.opts.Imputer)
	if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }
	if err := p.imp.fit(m); err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }
	m = p.imp.transform(m)
	if m.HasNaN() { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, ErrMissingValues }

	p.scale = nil
	if p.opts.Normaliser != "" {
		p.scale, err = fitScaler(p.opts.Normaliser, m)
		if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }
		m = p.scale.apply(m)
	}
	p.fitted = true
	return m, y, nil
}

// Transform applies the fitted pipeline to another table. Categorical levels
// absent from training become extra trailing columns; fitted columns missing
// from t are a dataset.ErrSchemaMismatch.
func (p *Preprocessor) Transform(t dataset.Table, labels []string) (dataset.FeatureMatrix, dataset.LabelMatrix, error) {
	if !p.fitted { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, fmt.Errorf("preprocessor not fitted") }
	var missing []string
	for _, c := range p.cols {
		if t.Index(c.name) < 0 { missing = append(missing, c.name) }
	}
	for _, l := range labels {
		if t.Index(l) < 0 { missing = append(missing, l) }
	}
	if len(missing) > 0 {
		return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, fmt.Errorf("%w: training columns %v missing from validation data", dataset.ErrSchemaMismatch, missing)
	}
	y, err := parseLabels(t, labels)
	if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }

	cols := make([]column, len(p.cols))
	for k, c := range p.cols {
		cells, err := t.Column(c.name)
		if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }
		cols[k] = c.withUnseenLevels(cells)
	}
	m, err := encode(t, cols)
	if err != nil { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, err }
	m = dropColumns(m, p.dropped)

	// Known columns first so fitted statistics line up by position.
	var known []string
	for _, c := range p.cols { known = append(known, c.outputs()...) }
	known = without(known, p.dropped)
	m = reorder(m, known)

	m = p.imp.transform(m)
	if m.HasNaN() { return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, ErrMissingValues }
	if p.scale != nil { m = p.scale.apply(m) }
	return m, y, nil
}

func featureNames(t dataset.Table, labels []string) []string {
	return without(t.Columns, labels)
}

func without(names, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop { skip[d] = true }
	var out []string
	for _, n := range names {
		if !skip[n] { out = append(out, n) }
	}
	return out
}

func dropColumns(m dataset.FeatureMatrix, names []string) dataset.FeatureMatrix {
	if len(names) == 0 { return m }
	skip := make(map[string]bool, len(names))
	for _, n := range names { skip[n] = true }
	var keep []int
	for j, c := range m.Columns {
		if !skip[c] { keep = append(keep, j) }
	}
	return m.SelectColumns(keep)
}

// reorder puts the columns named in first at the front, in that order,
// followed by every other column in its current order.
func reorder(m dataset.FeatureMatrix, first []string) dataset.FeatureMatrix {
	used := make(map[int]bool, len(m.Columns))
	var idx []int
	for _, n := range first {
		if j := m.Index(n); j >= 0 {
			idx = append(idx, j)
			used[j] = true
		}
	}
	for j := range m.Columns {
		if !used[j] { idx = append(idx, j) }
	}
	return m.SelectColumns(idx)
}
