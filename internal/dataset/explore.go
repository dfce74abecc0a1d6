package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"
)

type ColumnSummary struct {
	Name        string
	Numeric     bool
	MissingFrac float64
	Mean        float64
	Median      float64
	Std         float64
	Min         float64
	Max         float64
	Levels      map[string]int
}

type Report struct {
	Dataset string
	Rows    int
	Columns []ColumnSummary
	// Prevalence is the fraction of positive rows per label.
	Prevalence map[string]float64
}

// Explore summarises every column of t. A column is numeric when all of its
// present cells parse as floats.
func Explore(name string, t Table, labels []string) Report {
	r := Report{Dataset: name, Rows: len(t.Rows), Prevalence: map[string]float64{}}
	for _, c := range t.Columns {
		cells, _ := t.Column(c)
		r.Columns = append(r.Columns, summarise(c, cells))
	}
	for _, l := range labels {
		cells, err := t.Column(l)
		if err != nil { continue }
		var pos, n int
		for _, v := range cells {
			if Missing(v) { continue }
			n++
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f == 1 { pos++ }
		}
		if n > 0 { r.Prevalence[l] = float64(pos) / float64(n) }
	}
	return r
}

func summarise(name string, cells []string) ColumnSummary {
	s := ColumnSummary{Name: name, Numeric: true}
	var nums stats.Float64Data
	levels := map[string]int{}
	missing := 0
	for _, v := range cells {
		if Missing(v) {
			missing++
			continue
		}
		levels[strings.TrimSpace(v)]++
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			s.Numeric = false
			continue
		}
		nums = append(nums, f)
	}
	if len(cells) > 0 { s.MissingFrac = float64(missing) / float64(len(cells)) }
	if !s.Numeric || len(nums) == 0 {
		s.Numeric = false
		s.Levels = levels
		return s
	}
	s.Mean, _ = nums.Mean()
	s.Median, _ = nums.Median()
	s.Std, _ = nums.StandardDeviationSample()
	s.Min, _ = nums.Min()
	s.Max, _ = nums.Max()
	return s
}

func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Data exploration: %s\n\n%d rows, %d columns\n\n", r.Dataset, r.Rows, len(r.Columns))
	if len(r.Prevalence) > 0 {
		b.WriteString("## Labels\n\n| label | positive fraction |\n|---|---|\n")
		names := make([]string, 0, len(r.Prevalence))
		for n := range r.Prevalence { names = append(names, n) }
		sort.Strings(names)
		for _, n := range names { fmt.Fprintf(&b, "| %s | %.3f |\n", n, r.Prevalence[n]) }
		b.WriteString("\n")
	}
	b.WriteString("## Numeric columns\n\n| column | missing | mean | median | std | min | max |\n|---|---|---|---|---|---|---|\n")
	for _, c := range r.Columns {
		if !c.Numeric { continue }
		fmt.Fprintf(&b, "| %s | %.1f%% | %.3f | %.3f | %.3f | %.3f | %.3f |\n", c.Name, 100*c.MissingFrac, c.Mean, c.Median, c.Std, c.Min, c.Max)
	}
	b.WriteString("\n## Categorical columns\n\n| column | missing | levels |\n|---|---|---|\n")
	for _, c := range r.Columns {
		if c.Numeric { continue }
		keys := make([]string, 0, len(c.Levels))
		for k := range c.Levels { keys = append(keys, k) }
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys { parts[i] = fmt.Sprintf("%s (%d)", k, c.Levels[k]) }
		fmt.Fprintf(&b, "| %s | %.1f%% | %s |\n", c.Name, 100*c.MissingFrac, strings.Join(parts, ", "))
	}
	return b.String()
}

func (r Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Data exploration: " + r.Dataset,
	})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}

func (r Report) WriteHTML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return err }
	return os.WriteFile(path, r.HTML(), 0o644)
}
