// Package pipeline drives one evaluation run: parse the dataset, preprocess
// it once, then evaluate every model candidate on every label column and
// hand the results to the aggregator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"outcomeeval/internal/aggregate"
	"outcomeeval/internal/balance"
	"outcomeeval/internal/config"
	"outcomeeval/internal/dataset"
	"outcomeeval/internal/evaluate"
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/models"
	"outcomeeval/internal/preprocess"
	"outcomeeval/internal/report"
	"outcomeeval/internal/split"
)

// ModelError reports which model failed on which label.
type ModelError struct {
	Label string
	Model string
	Err   error
}

func (e *ModelError) Error() string { return fmt.Sprintf("label %q model %q: %v", e.Label, e.Model, e.Err) }

func (e *ModelError) Unwrap() error { return e.Err }

type Option func(*Runner)

// WithCatalog replaces the candidate catalog resolved from the config.
func WithCatalog(c *models.Catalog) Option { return func(r *Runner) { r.catalog = c } }

// WithPlotter replaces the figure renderer; it is ignored when plots are
// disabled in the config.
func WithPlotter(p aggregate.Plotter) Option { return func(r *Runner) { r.plotter = p } }

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

type Runner struct {
	cfg     config.Config
	catalog *models.Catalog
	plotter aggregate.Plotter
	now     func() time.Time
	log     *zap.Logger
}

func New(cfg config.Config, log *zap.Logger, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil { return nil, err }
	if log == nil { log = zap.NewNop() }
	r := &Runner{cfg: cfg, now: time.Now, log: log}
	for _, o := range opts { o(r) }
	if r.catalog == nil {
		if cfg.CatalogPath != "" {
			cat, err := models.LoadCatalog(cfg.CatalogPath, cfg.ClassWeighted(), cfg.Seed)
			if err != nil { return nil, err }
			r.catalog = cat
		} else {
			r.catalog = models.DefaultCatalog(cfg.ClassWeighted(), cfg.Seed)
		}
	}
	return r, nil
}

// Result summarises a finished run.
type Result struct {
	RunID  string
	RunDir string
	Tables *aggregate.Tables
	// Warnings combines skipped model/label pairs and plot failures.
	Warnings error
}

// Run evaluates every label. ErrSchemaMismatch and a model without any
// successful fit abort the run; balancing failures skip the model on that
// label.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg
	started := r.now()
	res := &Result{RunID: uuid.NewString(), RunDir: cfg.RunDir(started)}
	log := r.log.With(zap.String("run_id", res.RunID), zap.String("dataset", cfg.Dataset))
	log.Info("run started", zap.String("dir", res.RunDir), zap.Strings("models", r.catalog.IDs()))

	store, err := report.NewStore(res.RunDir, log)
	if err != nil { return nil, err }
	trials, err := report.OpenTrialLog(res.RunDir, cfg, res.RunID, started)
	if err != nil { return nil, err }
	summary := report.Summary{RunID: res.RunID, Dataset: cfg.Dataset, Started: started, Models: r.catalog.IDs(), Metrics: metrics.ScalarNames()}
	fail := func(err error) (*Result, error) {
		summary.Failed = err.Error()
		summary.Finished = r.now()
		if werr := store.WriteSummary(summary); werr != nil { log.Warn("cannot write run summary", zap.Error(werr)) }
		log.Error("run aborted", zap.Error(err))
		return nil, err
	}

	x, y, resolver, labels, err := r.prepare(res.RunDir, log)
	if err != nil { return fail(err) }
	ev, err := evaluate.New(evaluate.Options{
		CVSplits:       cfg.CVSplits,
		Resampling:     cfg.Resampling(),
		SelectFeatures: cfg.SelectFeatures,
		Explain:        cfg.Explain,
		RefitMetric:    cfg.RefitMetric,
		Seed:           cfg.Seed,
	}, log)
	if err != nil { return fail(err) }

	var plot aggregate.Plotter
	if cfg.Plots {
		plot = r.plotter
		if plot == nil { plot = report.NewRenderer(res.RunDir, log) }
	}
	agg := aggregate.New(store, plot, log)
	var skipped error
	for _, label := range labels {
		if err := ctx.Err(); err != nil { return fail(err) }
		lr, err := r.evaluateLabel(ctx, ev, resolver, x, y, label, log)
		if err != nil {
			var me *ModelError
			if errors.As(err, &me) && errors.Is(err, evaluate.ErrNoSuccessfulFit) {
				if werr := trials.Failure(me.Label, me.Model, me.Err); werr != nil { log.Warn("cannot write trial log", zap.Error(werr)) }
			}
			return fail(err)
		}
		if err := trials.Label(label, lr.Results(), lr.Skipped()); err != nil { return fail(err) }
		if err := agg.Finalize(lr); err != nil { return fail(err) }
		for _, s := range lr.Skipped() { skipped = multierr.Append(skipped, &ModelError{Label: label, Model: s.Model, Err: s.Err}) }
		summary.Labels = append(summary.Labels, label)
		if err := store.WriteSummary(summary); err != nil { return fail(err) }
	}

	res.Tables = agg.Tables()
	res.Warnings = multierr.Combine(skipped, agg.Warnings())
	for _, w := range multierr.Errors(res.Warnings) { summary.Warnings = append(summary.Warnings, w.Error()) }
	summary.Finished = r.now()
	if err := store.WriteSummary(summary); err != nil { return nil, err }
	log.Info("run finished", zap.Int("labels", len(summary.Labels)), zap.Int("warnings", len(summary.Warnings)), zap.Duration("elapsed", summary.Finished.Sub(started)))
	return res, nil
}

// prepare parses and preprocesses the dataset and builds the split resolver.
// Preprocessing statistics are fitted on the training data only.
func (r *Runner) prepare(runDir string, log *zap.Logger) (dataset.FeatureMatrix, dataset.LabelMatrix, *split.Resolver, []string, error) {
	cfg := r.cfg
	fail := func(err error) (dataset.FeatureMatrix, dataset.LabelMatrix, *split.Resolver, []string, error) {
		return dataset.FeatureMatrix{}, dataset.LabelMatrix{}, nil, nil, err
	}
	src, err := dataset.FromName(cfg.DataDir, cfg.Dataset, log)
	if err != nil { return fail(err) }
	parsed, err := src.Parse(dataset.ParseOptions{
		DropColumns:      cfg.DropFeatures,
		FeatureSets:      cfg.FeatureSets,
		DropMissingValue: cfg.DropMissingValue,
		External:         cfg.ExternalValidation,
		Exploration:      cfg.Exploration,
		OutDir:           runDir,
	})
	if err != nil { return fail(err) }

	pre := preprocess.New(preprocess.OptionsFrom(cfg, parsed.Categorical), log)
	x, y, err := pre.FitTransform(parsed.Train, parsed.Labels)
	if err != nil { return fail(fmt.Errorf("preprocess: %w", err)) }
	log.Info("dataset prepared", zap.Int("rows", x.Len()), zap.Int("features", len(x.Columns)), zap.Strings("labels", parsed.Labels))

	resolver := split.Internal(cfg.TestFraction, cfg.Seed)
	if parsed.Validation != nil {
		xv, yv, err := pre.Transform(*parsed.Validation, parsed.Labels)
		if err != nil { return fail(fmt.Errorf("preprocess external validation: %w", err)) }
		resolver, err = split.External(x, xv, yv, log)
		if err != nil { return fail(err) }
	}
	return x, y, resolver, parsed.Labels, nil
}

// evaluateLabel runs every candidate on one label. Candidates run on up to
// cfg.Workers goroutines; results are collected in catalog order once all
// have finished.
func (r *Runner) evaluateLabel(ctx context.Context, ev *evaluate.Evaluator, resolver *split.Resolver, x dataset.FeatureMatrix, y dataset.LabelMatrix, label string, log *zap.Logger) (*aggregate.LabelResults, error) {
	s, err := resolver.Resolve(x, y, label)
	if err != nil { return nil, err }
	log.Info("evaluating label", zap.String("label", label), zap.Int("train", len(s.YTrain)), zap.Int("test", len(s.YTest)))

	cands := r.catalog.Candidates()
	results := make([]*evaluate.TrialResult, len(cands))
	skips := make([]error, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, c := range cands {
		i, c := i, c
		g.Go(func() error {
			res, err := ev.Evaluate(gctx, evaluate.Input{
				Candidate: c, Label: label,
				XTrain: s.XTrain, XTest: s.XTest, YTrain: s.YTrain, YTest: s.YTest,
			})
			if errors.Is(err, balance.ErrUnsupportedDistribution) {
				skips[i] = err
				return nil
			}
			if err != nil { return &ModelError{Label: label, Model: c.ID, Err: err} }
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil { return nil, err }

	lr := aggregate.NewLabelResults(label)
	for i, c := range cands {
		if skips[i] != nil {
			lr.Skip(c.ID, skips[i])
			continue
		}
		if err := lr.Add(results[i]); err != nil { return nil, err }
	}
	return lr, nil
}
