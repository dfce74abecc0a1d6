package dataset

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Table is parsed tabular data before preprocessing. Cells are kept as
// strings; Missing reports which of them count as absent.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ErrSchemaMismatch reports training columns absent from the external
// validation data.
var ErrSchemaMismatch = errors.New("train/test schema mismatch")

var missingMarkers = map[string]bool{"": true, "na": true, "nan": true, "null": true, "none": true, "?": true}

func Missing(cell string) bool { return missingMarkers[strings.ToLower(strings.TrimSpace(cell))] }

func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name { return i }
	}
	return -1
}

func (t Table) Column(name string) ([]string, error) {
	j := t.Index(name)
	if j < 0 { return nil, fmt.Errorf("column %q not found", name) }
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows { out[i] = cell(r, j) }
	return out, nil
}

// Select keeps the named columns, in the given order, skipping names the
// table does not have.
func (t Table) Select(names []string) Table {
	var idx []int
	var cols []string
	for _, n := range names {
		if j := t.Index(n); j >= 0 {
			idx = append(idx, j)
			cols = append(cols, n)
		}
	}
	out := Table{Columns: cols, Rows: make([][]string, len(t.Rows))}
	for i, r := range t.Rows {
		row := make([]string, len(idx))
		for k, j := range idx { row[k] = cell(r, j) }
		out.Rows[i] = row
	}
	return out
}

func (t Table) Drop(names []string) Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names { drop[n] = true }
	var keep []string
	for _, c := range t.Columns {
		if !drop[c] { keep = append(keep, c) }
	}
	return t.Select(keep)
}

// DropSparseRows removes rows whose fraction of missing feature cells is
// above frac. Columns in exclude (labels) are not counted. frac <= 0 keeps
// every row.
func (t Table) DropSparseRows(frac float64, exclude []string) (Table, int) {
	if frac <= 0 || len(t.Columns) == 0 { return t, 0 }
	skip := make(map[int]bool)
	for _, n := range exclude {
		if j := t.Index(n); j >= 0 { skip[j] = true }
	}
	width := len(t.Columns) - len(skip)
	if width <= 0 { return t, 0 }
	out := Table{Columns: t.Columns}
	dropped := 0
	for _, r := range t.Rows {
		miss := 0
		for j := range t.Columns {
			if !skip[j] && Missing(cell(r, j)) { miss++ }
		}
		if float64(miss)/float64(width) > frac {
			dropped++
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out, dropped
}

func cell(r []string, j int) string {
	if j < len(r) { return r[j] }
	return ""
}

// FeatureMatrix holds preprocessed numeric features, one row per sample.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
}

func (m FeatureMatrix) Len() int { return len(m.Rows) }

func (m FeatureMatrix) Index(name string) int {
	for i, c := range m.Columns {
		if c == name { return i }
	}
	return -1
}

// Subset returns the rows at idx. Row slices are shared with m.
func (m FeatureMatrix) Subset(idx []int) FeatureMatrix {
	out := FeatureMatrix{Columns: m.Columns, Rows: make([][]float64, len(idx))}
	for i, j := range idx { out.Rows[i] = m.Rows[j] }
	return out
}

// SelectColumns returns a copy restricted to the column positions in cols.
func (m FeatureMatrix) SelectColumns(cols []int) FeatureMatrix {
	out := FeatureMatrix{Columns: make([]string, len(cols)), Rows: make([][]float64, len(m.Rows))}
	for k, j := range cols { out.Columns[k] = m.Columns[j] }
	for i, r := range m.Rows {
		row := make([]float64, len(cols))
		for k, j := range cols { row[k] = r[j] }
		out.Rows[i] = row
	}
	return out
}

func (m FeatureMatrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, r := range m.Rows { out[i] = r[j] }
	return out
}

func (m FeatureMatrix) Clone() FeatureMatrix {
	out := FeatureMatrix{Columns: append([]string(nil), m.Columns...), Rows: make([][]float64, len(m.Rows))}
	for i, r := range m.Rows { out.Rows[i] = append([]float64(nil), r...) }
	return out
}

// HasNaN reports whether any cell is still missing after preprocessing.
func (m FeatureMatrix) HasNaN() bool {
	for _, r := range m.Rows {
		for _, v := range r {
			if math.IsNaN(v) { return true }
		}
	}
	return false
}

// LabelMatrix holds binary outcome labels, row-aligned with a FeatureMatrix.
type LabelMatrix struct {
	Columns []string
	Rows    [][]int
}

func (l LabelMatrix) Column(name string) ([]int, error) {
	j := -1
	for i, c := range l.Columns {
		if c == name { j = i }
	}
	if j < 0 { return nil, fmt.Errorf("label %q not found", name) }
	out := make([]int, len(l.Rows))
	for i, r := range l.Rows { out[i] = r[j] }
	return out, nil
}
