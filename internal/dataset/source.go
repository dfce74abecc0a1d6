// Package dataset resolves named clinical datasets and loads them into raw
// tables for preprocessing.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// Descriptor is the <data_dir>/<name>.yaml file describing one dataset.
type Descriptor struct {
	Name           string              `yaml:"name"`
	TrainFile      string              `yaml:"train_file"`
	ValidationFile string              `yaml:"validation_file,omitempty"`
	Labels         []string            `yaml:"labels"`
	DropColumns    []string            `yaml:"drop_columns,omitempty"`
	Categorical    []string            `yaml:"categorical,omitempty"`
	FeatureSets    map[string][]string `yaml:"feature_sets,omitempty"`
}

type Source struct {
	Descriptor
	Dir string
	log *zap.Logger
}

// FromName loads the descriptor of a registered dataset.
func FromName(dataDir, name string, log *zap.Logger) (*Source, error) {
	path := filepath.Join(dataDir, name+".yaml")
	b, err := os.ReadFile(path)
	if err != nil { return nil, fmt.Errorf("dataset %q: %w", name, err) }
	var d Descriptor
	if err := yaml.Unmarshal(b, &d); err != nil { return nil, fmt.Errorf("dataset %q: parse %s: %w", name, path, err) }
	if d.Name == "" { d.Name = name }
	if d.TrainFile == "" { return nil, fmt.Errorf("dataset %q: train_file is required", name) }
	if len(d.Labels) == 0 { return nil, fmt.Errorf("dataset %q: no label columns", name) }
	for _, l := range d.Labels {
		if !pathSafe(l) { return nil, fmt.Errorf("dataset %q: label %q cannot name an output directory", name, l) }
	}
	if log == nil { log = zap.NewNop() }
	return &Source{Descriptor: d, Dir: dataDir, log: log.With(zap.String("dataset", d.Name))}, nil
}

// pathSafe reports whether a label can be used as a single path element.
func pathSafe(l string) bool {
	return strings.TrimSpace(l) != "" && l != "." && l != ".." && !strings.ContainsAny(l, `/\`)
}

// WriteDescriptor stores d as <dir>/<d.Name>.yaml.
func WriteDescriptor(dir string, d Descriptor) error {
	b, err := yaml.Marshal(d)
	if err != nil { return err }
	return os.WriteFile(filepath.Join(dir, d.Name+".yaml"), b, 0o644)
}

type ParseOptions struct {
	DropColumns      bool
	FeatureSets      []string
	DropMissingValue float64
	External         bool
	Exploration      bool
	OutDir           string
}

// Parsed is the raw result of Parse. Validation is nil unless the external
// validation set was requested.
type Parsed struct {
	Train       Table
	Validation  *Table
	Labels      []string
	Categorical []string
}

func (s *Source) Parse(opts ParseOptions) (*Parsed, error) {
	train, err := s.load(s.TrainFile)
	if err != nil { return nil, err }
	for _, l := range s.Labels {
		if train.Index(l) < 0 { return nil, fmt.Errorf("dataset %q: label column %q missing from %s", s.Name, l, s.TrainFile) }
	}
	out := &Parsed{Labels: s.Labels, Categorical: s.Categorical}
	out.Train, err = s.shape(train, opts)
	if err != nil { return nil, err }

	if opts.External {
		if s.ValidationFile == "" { return nil, fmt.Errorf("dataset %q: no validation_file for external validation", s.Name) }
		val, err := s.load(s.ValidationFile)
		if err != nil { return nil, err }
		val, err = s.shape(val, opts)
		if err != nil { return nil, err }
		out.Validation = &val
	}
	if opts.Exploration {
		rep := Explore(s.Name, out.Train, s.Labels)
		path := filepath.Join(opts.OutDir, "data_exploration.html")
		if err := rep.WriteHTML(path); err != nil { return nil, fmt.Errorf("exploration report: %w", err) }
		s.log.Info("exploration report written", zap.String("path", path))
	}
	return out, nil
}

func (s *Source) load(file string) (Table, error) {
	path := file
	if !filepath.IsAbs(path) { path = filepath.Join(s.Dir, file) }
	return ReadTable(path)
}

func (s *Source) shape(t Table, opts ParseOptions) (Table, error) {
	if opts.DropColumns && len(s.DropColumns) > 0 {
		t = t.Drop(s.DropColumns)
	}
	if len(opts.FeatureSets) > 0 {
		var keep []string
		for _, fs := range opts.FeatureSets {
			cols, ok := s.FeatureSets[fs]
			if !ok { return Table{}, fmt.Errorf("dataset %q: feature set %q not defined", s.Name, fs) }
			keep = append(keep, cols...)
		}
		keep = append(keep, s.Labels...)
		t = t.Select(dedupe(keep))
	}
	t, dropped := t.DropSparseRows(opts.DropMissingValue, s.Labels)
	if dropped > 0 {
		s.log.Info("dropped rows with missing values", zap.Int("rows", dropped), zap.Float64("threshold", opts.DropMissingValue))
	}
	if len(t.Rows) == 0 { return Table{}, fmt.Errorf("dataset %q: no rows left after parsing", s.Name) }
	return t, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
