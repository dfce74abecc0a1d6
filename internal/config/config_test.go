package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValidOnceDatasetIsSet(t *testing.T) {
	c := Default()
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
	c.Dataset = "complications"
	require.NoError(t, c.Validate())
	assert.Equal(t, 10, c.CVSplits)
	assert.Equal(t, 0.2, c.TestFraction)
	assert.Equal(t, BalanceClassWeight, c.Balancing)
	assert.Equal(t, int64(42), c.Seed)
}

func TestValidateRejectsUnknownOptions(t *testing.T) {
	cases := map[string]func(*Config){
		"balancing":   func(c *Config) { c.Balancing = "undersampling" },
		"feature set": func(c *Config) { c.FeatureSets = []string{"pre", "late"} },
		"imputer":     func(c *Config) { c.Imputer = "zero" },
		"normaliser":  func(c *Config) { c.Normaliser = "robust" },
		"selector":    func(c *Config) { c.FeatureSelectors = []string{"variance"} },
		"cv":          func(c *Config) { c.CVSplits = 0 },
		"fraction":    func(c *Config) { c.TestFraction = 1 },
		"refit":       func(c *Config) { c.RefitMetric = "brier_score" },
		"workers":     func(c *Config) { c.Workers = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.Dataset = "complications"
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestExternalValidationIgnoresTestFraction(t *testing.T) {
	c := Default()
	c.Dataset = "esophagus"
	c.ExternalValidation = true
	c.TestFraction = 0
	assert.NoError(t, c.Validate())
}

func TestRunDir(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	c := Default()
	c.Dataset = "stomach"
	assert.Equal(t, "results_stomach_2024-03-05T14-07-09_seed_42", c.RunDir(now))

	c.OutDir = "out"
	c.FeatureSets = []string{"pre", "intra"}
	c.Seed = 7
	assert.Equal(t, filepath.Join("out", "results_stomach_pre_intra_2024-03-05T14-07-09_seed_7"), c.RunDir(now))
}

func TestBalancingHelpers(t *testing.T) {
	c := Default()
	assert.True(t, c.ClassWeighted())
	assert.Equal(t, "", c.Resampling())
	c.Balancing = BalanceSMOTE
	assert.False(t, c.ClassWeighted())
	assert.Equal(t, BalanceSMOTE, c.Resampling())
	c.Balancing = BalanceNone
	assert.Equal(t, "", c.Resampling())
}

func TestTrialHeader(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "========== New Trial at 05.03.2024 14:07:09 ==========", TrialHeader(now))
}
