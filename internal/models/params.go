package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Params is one point of a hyperparameter grid.
type Params map[string]float64

func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok { return int(math.Round(v)) }
	return def
}

func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok { return v }
	return def
}

func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok { return v != 0 }
	return def
}

func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p { keys = append(keys, k) }
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Grid maps a hyperparameter name to the values searched for it.
type Grid map[string][]float64

// Points expands the grid into its cartesian product. Keys are taken in
// lexical order with the first key varying slowest, values in declared order,
// so the result is stable across runs.
func (g Grid) Points() []Params {
	keys := make([]string, 0, len(g))
	for k := range g { keys = append(keys, k) }
	sort.Strings(keys)
	points := []Params{{}}
	for _, k := range keys {
		vals := g[k]
		if len(vals) == 0 { continue }
		next := make([]Params, 0, len(points)*len(vals))
		for _, p := range points {
			for _, v := range vals {
				q := make(Params, len(p)+1)
				for pk, pv := range p { q[pk] = pv }
				q[k] = v
				next = append(next, q)
			}
		}
		points = next
	}
	return points
}

func (g Grid) Validate() error {
	for k, vals := range g {
		if len(vals) == 0 { return fmt.Errorf("hyperparameter %q has no values", k) }
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) { return fmt.Errorf("hyperparameter %q has non-finite value", k) }
		}
	}
	return nil
}
