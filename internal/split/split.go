// Package split produces train/test partitions for one label and the
// cross-validation folds used inside the training partition.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"outcomeeval/internal/dataset"
)

// ErrSchemaMismatch is fatal: training columns are absent from the
// external validation data.
var ErrSchemaMismatch = dataset.ErrSchemaMismatch

// DroppedColumnsMessage is logged at Warn with the dropped names in the
// "columns" field.
const DroppedColumnsMessage = "dropping validation columns missing from training data"

type Split struct {
	XTrain, XTest dataset.FeatureMatrix
	YTrain, YTest []int
}

// Resolver yields the partition for every label column. It either splits
// the data itself (internal mode) or pairs it with a reconciled external
// validation set.
type Resolver struct {
	testFraction float64
	seed         int64
	val          *dataset.FeatureMatrix
	yVal         dataset.LabelMatrix
}

func Internal(testFraction float64, seed int64) *Resolver {
	return &Resolver{testFraction: testFraction, seed: seed}
}

// External reconciles xVal against the training columns of x once, so the
// dropped-column warning is logged a single time per run.
func External(x, xVal dataset.FeatureMatrix, yVal dataset.LabelMatrix, log *zap.Logger) (*Resolver, error) {
	rec, err := Reconcile(x, xVal, log)
	if err != nil { return nil, err }
	return &Resolver{val: &rec, yVal: yVal}, nil
}

func (r *Resolver) External() bool { return r.val != nil }

func (r *Resolver) Resolve(x dataset.FeatureMatrix, y dataset.LabelMatrix, label string) (Split, error) {
	yl, err := y.Column(label)
	if err != nil { return Split{}, err }
	if r.val == nil {
		train, test, err := Stratified(yl, r.testFraction, r.seed)
		if err != nil { return Split{}, fmt.Errorf("label %q: %w", label, err) }
		return Split{
			XTrain: x.Subset(train), YTrain: pick(yl, train),
			XTest: x.Subset(test), YTest: pick(yl, test),
		}, nil
	}
	if !sameColumns(x.Columns, r.val.Columns) {
		return Split{}, fmt.Errorf("%w: train %v, test %v", ErrSchemaMismatch, x.Columns, r.val.Columns)
	}
	yv, err := r.yVal.Column(label)
	if err != nil { return Split{}, fmt.Errorf("external validation: %w", err) }
	return Split{XTrain: x, YTrain: yl, XTest: *r.val, YTest: yv}, nil
}

// Reconcile drops validation columns unknown to training, logging exactly
// those names at Warn, and orders the rest like train. Training columns
// missing from val are an ErrSchemaMismatch.
func Reconcile(train, val dataset.FeatureMatrix, log *zap.Logger) (dataset.FeatureMatrix, error) {
	if log == nil { log = zap.NewNop() }
	inTrain := make(map[string]bool, len(train.Columns))
	for _, c := range train.Columns { inTrain[c] = true }
	var extra []string
	for _, c := range val.Columns {
		if !inTrain[c] { extra = append(extra, c) }
	}
	if len(extra) > 0 {
		log.Warn(DroppedColumnsMessage, zap.Strings("columns", extra))
	}
	var missing []string
	idx := make([]int, 0, len(train.Columns))
	for _, c := range train.Columns {
		j := val.Index(c)
		if j < 0 {
			missing = append(missing, c)
			continue
		}
		idx = append(idx, j)
	}
	if len(missing) > 0 {
		return dataset.FeatureMatrix{}, fmt.Errorf("%w: training columns %v missing from validation data", ErrSchemaMismatch, missing)
	}
	return val.SelectColumns(idx), nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) { return false }
	for i := range a {
		if a[i] != b[i] { return false }
	}
	return true
}

func pick(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx { out[i] = y[j] }
	return out
}

// byClass groups row indices by label value, classes in ascending order.
func byClass(y []int) (labels []int, groups [][]int) {
	m := map[int][]int{}
	for i, v := range y { m[v] = append(m[v], i) }
	for l := range m { labels = append(labels, l) }
	sort.Ints(labels)
	for _, l := range labels { groups = append(groups, m[l]) }
	return labels, groups
}

// Stratified sends round(n_c * frac) rows of every class c to test, at least
// one and at most n_c - 1, so both partitions keep the class ratio. Indices
// are returned in ascending order.
func Stratified(y []int, frac float64, seed int64) (train, test []int, err error) {
	if frac <= 0 || frac >= 1 { return nil, nil, fmt.Errorf("test fraction %g not in (0,1)", frac) }
	labels, groups := byClass(y)
	rng := rand.New(rand.NewSource(seed))
	for k, g := range groups {
		if len(g) < 2 { return nil, nil, fmt.Errorf("class %d has %d sample(s), need at least 2 to stratify", labels[k], len(g)) }
		idx := append([]int(nil), g...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(float64(len(idx)) * frac))
		if nTest < 1 { nTest = 1 }
		if nTest > len(idx)-1 { nTest = len(idx) - 1 }
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
