package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	BalanceClassWeight        = "class_weight"
	BalanceRandomOversampling = "random_oversampling"
	BalanceSMOTE              = "SMOTE"
	BalanceADASYN             = "ADASYN"
	BalanceNone               = "none"
)

var (
	BalancingOptions  = []string{BalanceClassWeight, BalanceRandomOversampling, BalanceSMOTE, BalanceADASYN, BalanceNone}
	FeatureSets       = []string{"pre", "intra", "post", "dyn"}
	Imputers          = []string{"iterative", "knn", "mean"}
	Normalisers       = []string{"standard", "minmax"}
	FeatureSelectors  = []string{"missing", "single_unique", "collinear"}
	RefitMetrics      = []string{"roc_auc", "average_precision", "f1", "mcc", "balanced_accuracy", "accuracy"}
	outDirTimeLayout  = "2006-01-02T15-04-05"
	trialHeaderLayout = "02.01.2006 15:04:05"
)

// Config is the single run configuration handed down from the CLI to every
// component of the evaluation loop.
type Config struct {
	Dataset              string   `yaml:"dataset"`
	DataDir              string   `yaml:"data_dir"`
	FeatureSets          []string `yaml:"feature_set"`
	ExternalValidation   bool     `yaml:"external_testset"`
	Imputer              string   `yaml:"imputer"`
	Normaliser           string   `yaml:"normaliser"`
	FeatureSelectors     []string `yaml:"feature_selectors"`
	OutDir               string   `yaml:"out_dir"`
	DropFeatures         bool     `yaml:"drop_features"`
	SelectFeatures       bool     `yaml:"select_features"`
	CVSplits             int      `yaml:"cv_splits"`
	Explain              bool     `yaml:"shap_eval"`
	TestFraction         float64  `yaml:"test_fraction"`
	Balancing            string   `yaml:"balancing_option"`
	DropMissingValue     float64  `yaml:"drop_missing_value"`
	MissingThreshold     float64  `yaml:"missing_threshold"`
	CorrelationThreshold float64  `yaml:"correlation_threshold"`
	Exploration          bool     `yaml:"data_exploration"`
	Seed                 int64    `yaml:"seed"`

	CatalogPath string `yaml:"catalog,omitempty"`
	RefitMetric string `yaml:"refit_metric"`
	Workers     int    `yaml:"workers"`
	Plots       bool   `yaml:"plots"`
}

func Default() Config {
	return Config{
		DataDir:              "data",
		Imputer:              "mean",
		FeatureSelectors:     append([]string(nil), FeatureSelectors...),
		DropFeatures:         true,
		SelectFeatures:       true,
		CVSplits:             10,
		TestFraction:         0.2,
		Balancing:            BalanceClassWeight,
		MissingThreshold:     0.5,
		CorrelationThreshold: 0.95,
		Seed:                 42,
		RefitMetric:          "roc_auc",
		Workers:              1,
		Plots:                true,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Dataset) == "" {
		return fmt.Errorf("%w: dataset is required", ErrInvalid)
	}
	if !oneOf(c.Balancing, BalancingOptions) {
		return fmt.Errorf("%w: balancing option %q (want one of %v)", ErrInvalid, c.Balancing, BalancingOptions)
	}
	for _, fs := range c.FeatureSets {
		if !oneOf(fs, FeatureSets) {
			return fmt.Errorf("%w: feature set %q (want one of %v)", ErrInvalid, fs, FeatureSets)
		}
	}
	if c.Imputer != "" && !oneOf(c.Imputer, Imputers) {
		return fmt.Errorf("%w: imputer %q (want one of %v)", ErrInvalid, c.Imputer, Imputers)
	}
	if c.Normaliser != "" && !oneOf(c.Normaliser, Normalisers) {
		return fmt.Errorf("%w: normaliser %q (want one of %v)", ErrInvalid, c.Normaliser, Normalisers)
	}
	for _, s := range c.FeatureSelectors {
		if !oneOf(s, FeatureSelectors) {
			return fmt.Errorf("%w: feature selector %q (want one of %v)", ErrInvalid, s, FeatureSelectors)
		}
	}
	if !oneOf(c.RefitMetric, RefitMetrics) {
		return fmt.Errorf("%w: refit metric %q (want one of %v)", ErrInvalid, c.RefitMetric, RefitMetrics)
	}
	if c.CVSplits < 1 {
		return fmt.Errorf("%w: cv_splits must be >= 1, got %d", ErrInvalid, c.CVSplits)
	}
	if !c.ExternalValidation && (c.TestFraction <= 0 || c.TestFraction >= 1) {
		return fmt.Errorf("%w: test_fraction must be in (0,1), got %g", ErrInvalid, c.TestFraction)
	}
	if c.DropMissingValue < 0 || c.DropMissingValue > 1 {
		return fmt.Errorf("%w: drop_missing_value must be in [0,1], got %g", ErrInvalid, c.DropMissingValue)
	}
	if c.MissingThreshold < 0 || c.MissingThreshold > 1 {
		return fmt.Errorf("%w: missing_threshold must be in [0,1], got %g", ErrInvalid, c.MissingThreshold)
	}
	if c.CorrelationThreshold <= 0 || c.CorrelationThreshold > 1 {
		return fmt.Errorf("%w: correlation_threshold must be in (0,1], got %g", ErrInvalid, c.CorrelationThreshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalid, c.Workers)
	}
	return nil
}

// RunDir names the per-run output directory:
// <out_dir>/results_<dataset>[_<feature sets>]_<timestamp>_seed_<seed>.
func (c Config) RunDir(now time.Time) string {
	fs := ""
	if len(c.FeatureSets) > 0 {
		fs = "_" + strings.Join(c.FeatureSets, "_")
	}
	name := fmt.Sprintf("results_%s%s_%s_seed_%d", c.Dataset, fs, now.Format(outDirTimeLayout), c.Seed)
	if c.OutDir == "" {
		return name
	}
	return filepath.Join(c.OutDir, name)
}

// ClassWeighted reports whether estimators should be built with balanced
// class weights instead of resampling the training data.
func (c Config) ClassWeighted() bool { return c.Balancing == BalanceClassWeight }

// Resampling returns the resampling technique, or "" when none applies.
func (c Config) Resampling() string {
	if c.Balancing == BalanceClassWeight || c.Balancing == BalanceNone {
		return ""
	}
	return c.Balancing
}

func (c Config) YAML() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", c)
	}
	return string(b)
}

func TrialHeader(now time.Time) string {
	return fmt.Sprintf("========== New Trial at %s ==========", now.Format(trialHeaderLayout))
}

func oneOf(s string, opts []string) bool {
	for _, o := range opts {
		if s == o {
			return true
		}
	}
	return false
}
