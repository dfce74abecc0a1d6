package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"outcomeeval/internal/dataset"
)

// column describes how one raw feature column becomes numeric columns.
type column struct {
	name        string
	categorical bool
	levels      []string
}

func (c column) outputs() []string {
	if !c.categorical { return []string{c.name} }
	out := make([]string, len(c.levels))
	for i, l := range c.levels { out[i] = c.name + "_" + l }
	return out
}

func parseFloat(s string) (float64, bool) {
	if dataset.Missing(s) { return math.NaN(), true }
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// inferColumns marks a column categorical when it is listed as such or any
// present cell is not a number. Levels are sorted.
func inferColumns(t dataset.Table, names []string, categorical []string) []column {
	forced := make(map[string]bool, len(categorical))
	for _, c := range categorical { forced[c] = true }
	cols := make([]column, 0, len(names))
	for _, n := range names {
		cells, _ := t.Column(n)
		c := column{name: n, categorical: forced[n]}
		if !c.categorical {
			for _, v := range cells {
				if _, ok := parseFloat(v); !ok {
					c.categorical = true
					break
				}
			}
		}
		if c.categorical { c.levels = levelsOf(cells) }
		cols = append(cols, c)
	}
	return cols
}

func levelsOf(cells []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range cells {
		if dataset.Missing(v) { continue }
		v = strings.TrimSpace(v)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// withUnseenLevels appends levels present in cells but unknown to c. They
// become extra one-hot columns after the known ones.
func (c column) withUnseenLevels(cells []string) column {
	if !c.categorical { return c }
	known := make(map[string]bool, len(c.levels))
	for _, l := range c.levels { known[l] = true }
	out := column{name: c.name, categorical: true, levels: append([]string(nil), c.levels...)}
	for _, l := range levelsOf(cells) {
		if !known[l] { out.levels = append(out.levels, l) }
	}
	return out
}

// encode turns the raw feature columns into a numeric matrix. Missing
// numeric cells are NaN; a missing categorical cell has all indicators 0.
func encode(t dataset.Table, cols []column) (dataset.FeatureMatrix, error) {
	var names []string
	for _, c := range cols { names = append(names, c.outputs()...) }
	m := dataset.FeatureMatrix{Columns: names, Rows: make([][]float64, len(t.Rows))}
	idx := make([]int, len(cols))
	for k, c := range cols {
		idx[k] = t.Index(c.name)
		if idx[k] < 0 { return dataset.FeatureMatrix{}, fmt.Errorf("feature column %q missing", c.name) }
	}
	for i, r := range t.Rows {
		row := make([]float64, 0, len(names))
		for k, c := range cols {
			v := ""
			if idx[k] < len(r) { v = r[idx[k]] }
			if !c.categorical {
				f, ok := parseFloat(v)
				if !ok { return dataset.FeatureMatrix{}, fmt.Errorf("row %d column %q: %q is not numeric", i, c.name, v) }
				row = append(row, f)
				continue
			}
			v = strings.TrimSpace(v)
			for _, l := range c.levels { row = append(row, boolToFloat(l == v)) }
		}
		m.Rows[i] = row
	}
	return m, nil
}

func boolToFloat(b bool) float64 { if b { return 1.0 }; return 0.0 }

// parseLabels converts the label columns to 0/1. Missing or non-binary
// values are an error.
func parseLabels(t dataset.Table, labels []string) (dataset.LabelMatrix, error) {
	out := dataset.LabelMatrix{Columns: labels, Rows: make([][]int, len(t.Rows))}
	for i := range out.Rows { out.Rows[i] = make([]int, len(labels)) }
	for j, l := range labels {
		cells, err := t.Column(l)
		if err != nil { return dataset.LabelMatrix{}, err }
		for i, v := range cells {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "1", "1.0", "true", "yes":
				out.Rows[i][j] = 1
			case "0", "0.0", "false", "no":
				out.Rows[i][j] = 0
			default:
				return dataset.LabelMatrix{}, fmt.Errorf("label %q row %d: %q is not binary", l, i, v)
			}
		}
	}
	return out, nil
}
