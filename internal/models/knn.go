package models

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

type KNN struct {
	K                int
	DistanceWeighted bool
	XTrain           [][]float64
	yTrain           []int
}

func NewKNN(k int) *KNN {
	if k <= 0 { k = 5 }
	return &KNN{K: k}
}

func (knn *KNN) Name() string { return "KNN" }

func (knn *KNN) Fit(X [][]float64, y []int) error {
	knn.XTrain = make([][]float64, len(X))
	for i := range X {
		knn.XTrain[i] = make([]float64, len(X[i]))
		copy(knn.XTrain[i], X[i])
	}
	knn.yTrain = make([]int, len(y))
	copy(knn.yTrain, y)
	return nil
}

func (knn *KNN) Predict(X [][]float64) []int { return predictAt(knn.PredictProba(X), 0.5) }

func (knn *KNN) PredictProba(X [][]float64) []float64 {
	if len(knn.XTrain) == 0 { return constProba(len(X), 0.5) }
	out := make([]float64, len(X))
	for i, sample := range X { out[i] = knn.probaOne(sample) }
	return out
}

type neighbor struct {
	index    int
	distance float64
}

func nearest(train [][]float64, sample []float64, k int, skip int) []neighbor {
	ns := make([]neighbor, 0, len(train))
	for i, row := range train {
		if i == skip { continue }
		ns = append(ns, neighbor{index: i, distance: floats.Distance(sample, row, 2)})
	}
	sort.SliceStable(ns, func(a, b int) bool { return ns[a].distance < ns[b].distance })
	if k > len(ns) { k = len(ns) }
	return ns[:k]
}

func (knn *KNN) probaOne(sample []float64) float64 {
	ns := nearest(knn.XTrain, sample, knn.K, -1)
	if !knn.DistanceWeighted {
		pos := 0
		for _, n := range ns { pos += knn.yTrain[n.index] }
		return float64(pos) / float64(len(ns))
	}
	var exact, exactPos int
	for _, n := range ns {
		if n.distance == 0 {
			exact++
			exactPos += knn.yTrain[n.index]
		}
	}
	if exact > 0 { return float64(exactPos) / float64(exact) }
	var tot, pos float64
	for _, n := range ns {
		w := 1 / n.distance
		tot += w
		if knn.yTrain[n.index] == 1 { pos += w }
	}
	return pos / tot
}

// Nearest exposes the neighbour search for resampling: the k rows of train
// closest to sample, skipping row index skip (use -1 to keep all).
func Nearest(train [][]float64, sample []float64, k int, skip int) []int {
	ns := nearest(train, sample, k, skip)
	out := make([]int, len(ns))
	for i, n := range ns { out[i] = n.index }
	return out
}
