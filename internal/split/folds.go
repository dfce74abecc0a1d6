package split

import (
	"fmt"
	"math/rand"
	"sort"
)

// Fold is one cross-validation round: row indices into the training
// partition.
type Fold struct {
	Train []int
	Val   []int
}

// Folds returns stratified k-fold rounds, or leave-one-out when splits == 1.
func Folds(y []int, splits int, seed int64) ([]Fold, error) {
	if splits == 1 { return LeaveOneOut(len(y)), nil }
	return StratifiedKFold(y, splits, seed)
}

// StratifiedKFold shuffles every class with the seed and deals its rows
// round-robin over the k folds, continuing the deal across classes so fold
// sizes differ by at most one.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 { return nil, fmt.Errorf("k-fold needs k >= 2, got %d", k) }
	if k > len(y) { return nil, fmt.Errorf("cannot split %d samples into %d folds", len(y), k) }
	rng := rand.New(rand.NewSource(seed))
	assign := make([]int, len(y))
	pos := 0
	_, groups := byClass(y)
	for _, g := range groups {
		idx := append([]int(nil), g...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for _, i := range idx {
			assign[i] = pos % k
			pos++
		}
	}
	folds := make([]Fold, k)
	for i, f := range assign {
		for j := range folds {
			if j == f { folds[j].Val = append(folds[j].Val, i) } else { folds[j].Train = append(folds[j].Train, i) }
		}
	}
	for j := range folds {
		sort.Ints(folds[j].Val)
		sort.Ints(folds[j].Train)
	}
	return folds, nil
}

func LeaveOneOut(n int) []Fold {
	folds := make([]Fold, n)
	for i := 0; i < n; i++ {
		train := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i { train = append(train, j) }
		}
		folds[i] = Fold{Train: train, Val: []int{i}}
	}
	return folds
}
