package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

var (
	ErrDuplicateCandidate = errors.New("duplicate model candidate id")
	ErrUnknownKind        = errors.New("unknown model kind")
)

type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindDecisionTree       Kind = "decision_tree"
	KindRandomForest       Kind = "random_forest"
	KindBagging            Kind = "bagging"
	KindGradientBoosting   Kind = "gradient_boosting"
	KindKNN                Kind = "k_neighbors"
	KindNaiveBayes         Kind = "gaussian_nb"
)

type builder struct {
	classWeight bool
	build       func(p Params, cw ClassWeight, seed int64) Model
}

var builders = map[Kind]builder{
	KindLogisticRegression: {classWeight: true, build: func(p Params, cw ClassWeight, _ int64) Model {
		m := NewLogisticRegression()
		m.C = p.Float("c", m.C)
		m.LearningRate = p.Float("learning_rate", m.LearningRate)
		m.MaxIter = p.Int("max_iter", m.MaxIter)
		m.Tol = p.Float("tol", m.Tol)
		m.ClassWeight = cw
		return m
	}},
	KindDecisionTree: {classWeight: true, build: func(p Params, cw ClassWeight, seed int64) Model {
		m := NewDecisionTree()
		m.MaxDepth = p.Int("max_depth", m.MaxDepth)
		m.MinSamplesSplit = p.Int("min_samples_split", m.MinSamplesSplit)
		m.MinSamplesLeaf = p.Int("min_samples_leaf", m.MinSamplesLeaf)
		m.MaxFeatures = p.Int("max_features", m.MaxFeatures)
		m.ClassWeight = cw
		m.Seed = seed
		return m
	}},
	KindRandomForest: {classWeight: true, build: func(p Params, cw ClassWeight, seed int64) Model {
		m := NewRandomForest()
		m.NEstimators = p.Int("n_estimators", m.NEstimators)
		m.MaxDepth = p.Int("max_depth", m.MaxDepth)
		m.MinSamples = p.Int("min_samples_split", m.MinSamples)
		m.MinSamplesLeaf = p.Int("min_samples_leaf", m.MinSamplesLeaf)
		m.MaxFeatures = p.Int("max_features", m.MaxFeatures)
		m.ClassWeight = cw
		m.Seed = seed
		return m
	}},
	KindBagging: {build: func(p Params, _ ClassWeight, seed int64) Model {
		m := NewBagging()
		m.NEstimators = p.Int("n_estimators", m.NEstimators)
		m.MaxDepth = p.Int("max_depth", m.MaxDepth)
		m.MinSamples = p.Int("min_samples_split", m.MinSamples)
		m.Seed = seed
		return m
	}},
	KindGradientBoosting: {classWeight: true, build: func(p Params, cw ClassWeight, seed int64) Model {
		m := NewGradientBoosting()
		m.NEstimators = p.Int("n_estimators", m.NEstimators)
		m.LearningRate = p.Float("learning_rate", m.LearningRate)
		m.MinSamples = p.Int("min_samples_leaf", m.MinSamples)
		m.Subsample = p.Float("subsample", m.Subsample)
		m.ClassWeight = cw
		m.Seed = seed
		return m
	}},
	KindKNN: {build: func(p Params, _ ClassWeight, _ int64) Model {
		m := NewKNN(p.Int("n_neighbors", 5))
		m.DistanceWeighted = p.Bool("distance_weighted", false)
		return m
	}},
	KindNaiveBayes: {build: func(p Params, _ ClassWeight, _ int64) Model {
		return NewNaiveBayes(p.Float("var_smoothing", 1e-9))
	}},
}

// SupportsClassWeight reports whether estimators of kind k honour balanced
// class weights.
func SupportsClassWeight(k Kind) bool { return builders[k].classWeight }

// Candidate pairs an estimator template with its hyperparameter search
// space. ID is the stable identity used to key results; it must be unique
// within a catalog.
type Candidate struct {
	ID          string
	Kind        Kind
	Grid        Grid
	ClassWeight ClassWeight
	Seed        int64
	// Factory overrides the built-in estimator for Kind when set.
	Factory func(p Params) (Model, error)
}

// New builds an untrained estimator for one grid point.
func (c Candidate) New(p Params) (Model, error) {
	if c.Factory != nil { return c.Factory(p) }
	b, ok := builders[c.Kind]
	if !ok { return nil, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind) }
	cw := c.ClassWeight
	if !b.classWeight { cw = NoClassWeight }
	return b.build(p, cw, c.Seed), nil
}

type Catalog struct {
	candidates []Candidate
}

func NewCatalog(cands ...Candidate) (*Catalog, error) {
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		if strings.TrimSpace(c.ID) == "" { return nil, fmt.Errorf("model candidate of kind %q has empty id", c.Kind) }
		if seen[c.ID] { return nil, fmt.Errorf("%w: %q", ErrDuplicateCandidate, c.ID) }
		seen[c.ID] = true
		if c.Factory == nil {
			if _, ok := builders[c.Kind]; !ok { return nil, fmt.Errorf("candidate %q: %w: %q", c.ID, ErrUnknownKind, c.Kind) }
		}
		if err := c.Grid.Validate(); err != nil { return nil, fmt.Errorf("candidate %q: %w", c.ID, err) }
	}
	out := make([]Candidate, len(cands))
	copy(out, cands)
	return &Catalog{candidates: out}, nil
}

func (c *Catalog) Candidates() []Candidate {
	out := make([]Candidate, len(c.candidates))
	copy(out, c.candidates)
	return out
}

func (c *Catalog) IDs() []string {
	out := make([]string, len(c.candidates))
	for i, cand := range c.candidates { out[i] = cand.ID }
	return out
}

// DefaultCatalog is the built-in candidate list. classWeighted switches
// every estimator that supports it to balanced class weights; seed is
// threaded into every stochastic estimator.
func DefaultCatalog(classWeighted bool, seed int64) *Catalog {
	cw := NoClassWeight
	if classWeighted { cw = Balanced }
	specs := []Candidate{
		{ID: "logistic_regression", Kind: KindLogisticRegression, Grid: Grid{"c": {0.01, 0.1, 1, 10}}},
		{ID: "decision_tree", Kind: KindDecisionTree, Grid: Grid{"max_depth": {3, 5, 8}, "min_samples_leaf": {1, 5}}},
		{ID: "random_forest", Kind: KindRandomForest, Grid: Grid{"n_estimators": {50, 100}, "max_depth": {4, 8}}},
		{ID: "bagging", Kind: KindBagging, Grid: Grid{"n_estimators": {30}, "max_depth": {4, 8}}},
		{ID: "gradient_boosting", Kind: KindGradientBoosting, Grid: Grid{"n_estimators": {50, 100}, "learning_rate": {0.05, 0.1}}},
		{ID: "k_neighbors", Kind: KindKNN, Grid: Grid{"n_neighbors": {5, 11, 21}, "distance_weighted": {0, 1}}},
		{ID: "gaussian_nb", Kind: KindNaiveBayes, Grid: Grid{"var_smoothing": {1e-9, 1e-6}}},
	}
	for i := range specs {
		specs[i].ClassWeight = cw
		specs[i].Seed = seed
	}
	cat, err := NewCatalog(specs...)
	if err != nil { panic(err) }
	return cat
}

type catalogFile struct {
	Candidates []struct {
		ID   string               `yaml:"id" toml:"id"`
		Kind string               `yaml:"kind" toml:"kind"`
		Grid map[string][]float64 `yaml:"grid" toml:"grid"`
	} `yaml:"candidates" toml:"candidates"`
}

// LoadCatalog reads a candidate list from a .yaml/.yml or .toml file.
func LoadCatalog(path string, classWeighted bool, seed int64) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil { return nil, fmt.Errorf("read catalog: %w", err) }
	var f catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported extension", path)
	}
	if err != nil { return nil, fmt.Errorf("parse catalog %s: %w", path, err) }
	cw := NoClassWeight
	if classWeighted { cw = Balanced }
	cands := make([]Candidate, 0, len(f.Candidates))
	for _, c := range f.Candidates {
		id := c.ID
		if id == "" { id = c.Kind }
		cands = append(cands, Candidate{ID: id, Kind: Kind(c.Kind), Grid: Grid(c.Grid), ClassWeight: cw, Seed: seed})
	}
	if len(cands) == 0 { return nil, fmt.Errorf("catalog %s: no candidates", path) }
	return NewCatalog(cands...)
}
