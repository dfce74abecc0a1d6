package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"outcomeeval/internal/config"
	"outcomeeval/internal/dataset"
	"outcomeeval/internal/pipeline"
	"outcomeeval/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	logger := utils.Logger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger)
	root.SetArgs(normalizeArgs(os.Args[1:]))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "outcomeeval",
		Short:         "Compare classical classifiers on binary clinical outcome labels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(logger), newSynthCmd(logger))
	return root
}

func defaultDataDir() string {
	if d := os.Getenv("OUTCOMEEVAL_DATA_DIR"); d != "" {
		return d
	}
	return config.Default().DataDir
}

func newRunCmd(logger *zap.Logger) *cobra.Command {
	cfg := config.Default()
	var noDrop, noSelect, noPlots bool

	cmd := &cobra.Command{
		Use:   "run <dataset>",
		Short: "Evaluate every model candidate on every label of a dataset",
		Long: `Evaluate every model candidate on every label column of a named dataset.

The dataset is resolved from <data_dir>/<dataset>.yaml. Results are written to
<out_dir>/results_<dataset>_<timestamp>_seed_<seed>.

Example: outcomeeval run cohort -f pre intra -i knn -n -b SMOTE -cv 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Dataset = args[0]
			cfg.DropFeatures = !noDrop
			cfg.SelectFeatures = !noSelect
			cfg.Plots = !noPlots
			return runEvaluation(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&cfg.FeatureSets, "feature_set", "f", nil, "restrict features to these sets (pre|intra|post|dyn)")
	f.BoolVarP(&cfg.ExternalValidation, "external_testset", "e", false, "evaluate on the external validation file instead of an internal split")
	f.StringVarP(&cfg.Imputer, "imputer", "i", cfg.Imputer, "imputer (iterative|knn|mean); --imputer= disables imputation")
	f.Lookup("imputer").NoOptDefVal = "knn"
	f.StringVarP(&cfg.Normaliser, "normaliser", "n", "", "normaliser (standard|minmax)")
	f.Lookup("normaliser").NoOptDefVal = "standard"
	f.StringSliceVar(&cfg.FeatureSelectors, "feature_selectors", cfg.FeatureSelectors, "feature selectors (missing|single_unique|collinear)")
	f.StringVarP(&cfg.OutDir, "out_dir", "o", "", "output directory")
	f.BoolVar(&noDrop, "no_features_dropped", false, "keep the descriptor's predefined drop columns")
	f.BoolVar(&noSelect, "no_feature_selection", false, "disable embedded feature selection")
	f.IntVar(&cfg.CVSplits, "cv_splits", cfg.CVSplits, "cross-validation folds (1 = leave-one-out)")
	f.BoolVar(&cfg.Explain, "shap_eval", false, "compute permutation attribution on the test partition")
	f.Float64VarP(&cfg.TestFraction, "test_fraction", "t", cfg.TestFraction, "test fraction of the internal split")
	f.StringVarP(&cfg.Balancing, "balancing_option", "b", cfg.Balancing, "class_weight|random_oversampling|SMOTE|ADASYN|none")
	f.Float64Var(&cfg.DropMissingValue, "drop_missing_value", cfg.DropMissingValue, "drop rows with more than this fraction missing (0 keeps all)")
	f.Float64Var(&cfg.MissingThreshold, "missing_threshold", cfg.MissingThreshold, "missing-value selector threshold")
	f.Float64Var(&cfg.CorrelationThreshold, "correlation_threshold", cfg.CorrelationThreshold, "collinear selector threshold")
	f.BoolVar(&cfg.Exploration, "data_exploration", false, "write an exploratory report of the dataset")
	f.Int64VarP(&cfg.Seed, "seed", "s", cfg.Seed, "random seed")

	f.StringVar(&cfg.DataDir, "data_dir", defaultDataDir(), "directory holding dataset descriptors")
	f.StringVar(&cfg.CatalogPath, "catalog", "", "model catalog file (.yaml or .toml)")
	f.StringVar(&cfg.RefitMetric, "refit_metric", cfg.RefitMetric, "metric used to pick hyperparameters")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "models evaluated in parallel")
	f.BoolVar(&noPlots, "no_plots", false, "skip figure rendering")
	f.SetNormalizeFunc(aliasNormalizer)
	return cmd
}

func runEvaluation(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	runner, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for _, w := range multierr.Errors(res.Warnings) {
		logger.Warn("run finished with warning", zap.Error(w))
	}
	fmt.Println(res.RunDir)
	return nil
}

func newSynthCmd(logger *zap.Logger) *cobra.Command {
	opts := dataset.CohortOptions{Name: "cohort", N: 1000, Prevalence: 0.2, Seed: 42}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic surgical cohort with its dataset descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("generating synthetic cohort", zap.String("name", opts.Name), zap.String("dir", opts.Dir), zap.Int("n", opts.N), zap.Int("validation_n", opts.ValidationN))
			d, err := dataset.GenerateCohort(opts)
			if err != nil {
				return fmt.Errorf("generate cohort: %w", err)
			}
			logger.Info("synthetic cohort written", zap.String("train", d.TrainFile), zap.String("validation", d.ValidationFile), zap.Strings("labels", d.Labels))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Name, "name", opts.Name, "dataset name")
	f.StringVar(&opts.Dir, "data_dir", defaultDataDir(), "output directory")
	f.IntVar(&opts.N, "n", opts.N, "training rows")
	f.IntVar(&opts.ValidationN, "validation_n", 0, "external validation rows (0 writes none)")
	f.Float64Var(&opts.Prevalence, "prevalence", opts.Prevalence, "approximate positive rate of each label")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	return cmd
}
