package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outcomeeval/internal/dataset"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"multi letter alias", []string{"cohort", "-cv", "5", "-nfs"}, []string{"cohort", "--cv", "5", "--nfs"}},
		{"optional value taken", []string{"-i", "iterative", "cohort"}, []string{"-i=iterative", "cohort"}},
		{"optional value absent", []string{"-n", "cohort"}, []string{"-n", "cohort"}},
		{"list values", []string{"cohort", "-f", "pre", "intra", "-fs", "missing", "collinear"}, []string{"cohort", "--feature_set=pre,intra", "--feature_selectors=missing,collinear"}},
		{"empty list", []string{"cohort", "-fs", "-cv", "5"}, []string{"cohort", "--feature_selectors=", "--cv", "5"}},
		{"empty list last", []string{"cohort", "-f"}, []string{"cohort", "--feature_set="}},
		{"bool value", []string{"-sh", "True", "cohort"}, []string{"--sh=True", "cohort"}},
		{"bool without value", []string{"-sh", "cohort"}, []string{"--sh", "cohort"}},
		{"explicit value untouched", []string{"--imputer=mean", "cohort"}, []string{"--imputer=mean", "cohort"}},
		{"terminator", []string{"--", "-cv"}, []string{"--", "-cv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeArgs(tt.in))
		})
	}
}

func TestRunFlagsMapToConfig(t *testing.T) {
	cmd := newRunCmd(zap.NewNop())
	args := normalizeArgs([]string{"-f", "pre", "-i", "-n", "minmax", "-cv", "3", "-nfd", "-b", "SMOTE", "-mt", "0.3", "-s", "7"})
	require.NoError(t, cmd.ParseFlags(args))

	f := cmd.Flags()
	fs, _ := f.GetStringSlice("feature_set")
	assert.Equal(t, []string{"pre"}, fs)
	imp, _ := f.GetString("imputer")
	assert.Equal(t, "knn", imp)
	norm, _ := f.GetString("normaliser")
	assert.Equal(t, "minmax", norm)
	cv, _ := f.GetInt("cv_splits")
	assert.Equal(t, 3, cv)
	nfd, _ := f.GetBool("no_features_dropped")
	assert.True(t, nfd)
	mt, _ := f.GetFloat64("missing_threshold")
	assert.Equal(t, 0.3, mt)
	seed, _ := f.GetInt64("seed")
	assert.EqualValues(t, 7, seed)
}

func TestEmptySelectorsAndBoolValue(t *testing.T) {
	cmd := newRunCmd(zap.NewNop())
	require.NoError(t, cmd.ParseFlags(normalizeArgs([]string{"cohort", "-fs", "-cv", "5", "-sh", "False", "-f"})))

	f := cmd.Flags()
	sel, _ := f.GetStringSlice("feature_selectors")
	assert.Empty(t, sel)
	fs, _ := f.GetStringSlice("feature_set")
	assert.Empty(t, fs)
	cv, _ := f.GetInt("cv_splits")
	assert.Equal(t, 5, cv)
	sh, _ := f.GetBool("shap_eval")
	assert.False(t, sh)
	assert.Equal(t, []string{"cohort"}, f.Args())

	cmd = newRunCmd(zap.NewNop())
	require.NoError(t, cmd.ParseFlags(normalizeArgs([]string{"-sh", "True", "cohort"})))
	sh, _ = cmd.Flags().GetBool("shap_eval")
	assert.True(t, sh)
	assert.Equal(t, []string{"cohort"}, cmd.Flags().Args())
}

func TestSynthThenRun(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	root := newRootCmd(zap.NewNop())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"synth", "--name", "cli", "--data_dir", dataDir, "--n", "120", "--prevalence", "0.3", "--seed", "5"})
	require.NoError(t, root.Execute())
	assert.FileExists(t, filepath.Join(dataDir, "cli.csv"))

	src, err := dataset.FromName(dataDir, "cli", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, src.Labels)

	root = newRootCmd(zap.NewNop())
	root.SetArgs(normalizeArgs([]string{"run", "cli", "--data_dir", dataDir, "-o", outDir, "-cv", "3", "-b", "none", "-nfs", "--no_plots", "--catalog", writeCatalog(t)}))
	require.NoError(t, root.Execute())

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "results_cli_")
}

func TestRunRequiresDataset(t *testing.T) {
	root := newRootCmd(zap.NewNop())
	root.SetArgs([]string{"run"})
	assert.Error(t, root.Execute())
}

func writeCatalog(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("candidates:\n  - id: gaussian_nb\n    kind: gaussian_nb\n"), 0o644))
	return path
}
