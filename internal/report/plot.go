package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"outcomeeval/internal/aggregate"
	"outcomeeval/internal/evaluate"
	"outcomeeval/internal/metrics"
)

// curveGrid is the false-positive-rate or recall grid fold curves are
// interpolated on before averaging.
var curveGrid = func() []float64 {
	g := make([]float64, 101)
	for i := range g { g[i] = float64(i) / 100 }
	return g
}()

// Renderer draws the per-label figures into <root>/<label>/.
type Renderer struct {
	Root   string
	Width  vg.Length
	Height vg.Length
	log    *zap.Logger
}

func NewRenderer(root string, log *zap.Logger) *Renderer {
	if log == nil { log = zap.NewNop() }
	return &Renderer{Root: root, Width: 8 * vg.Inch, Height: 5 * vg.Inch, log: log}
}

// YMin is the lower bound of a metric's boxplot axis.
func YMin(metric string) float64 {
	if metric == metrics.MCC { return -1 }
	return 0
}

func (r *Renderer) dir(label string, sub ...string) (string, error) {
	d := filepath.Join(append([]string{r.Root, label}, sub...)...)
	return d, os.MkdirAll(d, 0o755)
}

// Boxplot compares the validation folds of every model for one metric; the
// test value of each model is drawn as a point over its box.
func (r *Renderer) Boxplot(label, metric string, data []aggregate.MetricEntry) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", metric, label)
	p.Y.Label.Text = metric
	p.Y.Min = YMin(metric)
	p.Y.Max = 1

	names := make([]string, len(data))
	var test plotter.XYs
	for i, d := range data {
		names[i] = d.Model
		vals := finite(d.Val)
		if len(vals) > 0 {
			b, err := plotter.NewBoxPlot(vg.Points(20), float64(i), vals)
			if err != nil { return fmt.Errorf("%s: %w", d.Model, err) }
			p.Add(b)
		}
		if !math.IsNaN(d.Test) { test = append(test, plotter.XY{X: float64(i), Y: d.Test}) }
	}
	if len(test) > 0 {
		s, err := plotter.NewScatter(test)
		if err != nil { return err }
		s.GlyphStyle.Color = plotutil.Color(1)
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add("test", s)
	}
	p.NominalX(names...)

	dir, err := r.dir(label, "boxplots")
	if err != nil { return err }
	return p.Save(r.Width, r.Height, filepath.Join(dir, metric+".png"))
}

// Curves draws the mean validation ROC and PR curve of every model, the
// test ROC and PR curves, and a combined ROC+PR figure of the test partition.
func (r *Renderer) Curves(label string, results []*evaluate.TrialResult) error {
	dir, err := r.dir(label)
	if err != nil { return err }
	valROC, valPR := newROC(label, "validation"), newPR(label, "validation")
	testROC, testPR := newROC(label, "test"), newPR(label, "test")

	var vROC, vPR, tROC, tPR []interface{}
	for _, res := range results {
		c := res.Curves
		vROC = append(vROC, fmt.Sprintf("%s (AUC %.3f)", res.Model, meanAUC(c.ValROC)), meanCurve(c.ValROC, false))
		vPR = append(vPR, fmt.Sprintf("%s (AP %.3f)", res.Model, meanAUC(c.ValPR)), meanCurve(c.ValPR, true))
		tROC = append(tROC, fmt.Sprintf("%s (AUC %.3f)", res.Model, c.TestROC.AUC), xys(c.TestROC))
		tPR = append(tPR, fmt.Sprintf("%s (AP %.3f)", res.Model, c.TestPR.AUC), xys(c.TestPR))
	}
	if err := plotutil.AddLines(valROC, vROC...); err != nil { return err }
	if err := plotutil.AddLines(valPR, vPR...); err != nil { return err }
	if err := plotutil.AddLines(testROC, tROC...); err != nil { return err }
	if err := plotutil.AddLines(testPR, tPR...); err != nil { return err }
	if len(results) > 0 {
		if err := baseline(valPR, results[0].Curves.ValPrevalence); err != nil { return err }
		if err := baseline(testPR, results[0].Curves.TestPrevalence); err != nil { return err }
	}
	for _, p := range []*plot.Plot{valROC, testROC} {
		if err := chance(p); err != nil { return err }
	}

	files := map[string]*plot.Plot{"val_roc.png": valROC, "val_pr.png": valPR, "test_roc.png": testROC, "test_pr.png": testPR}
	for name, p := range files {
		if err := p.Save(r.Width, r.Height, filepath.Join(dir, name)); err != nil { return fmt.Errorf("%s: %w", name, err) }
	}
	return saveTiled(filepath.Join(dir, "roc_pr.png"), 2*r.Width, r.Height, testROC, testPR)
}

// Attribution writes the permutation importances of one model as a CSV and
// a horizontal bar chart, most important feature on top.
func (r *Renderer) Attribution(label string, res *evaluate.TrialResult) error {
	dir, err := r.dir(label, "attribution")
	if err != nil { return err }
	attr := append([]evaluate.Attribution(nil), res.Attribution...)
	sort.SliceStable(attr, func(i, j int) bool { return attr[i].Mean > attr[j].Mean })
	if err := writeAttributionCSV(filepath.Join(dir, res.Model+".csv"), attr); err != nil { return err }

	// bars are drawn bottom-up
	vals := make(plotter.Values, len(attr))
	names := make([]string, len(attr))
	for i, a := range attr {
		vals[len(attr)-1-i] = a.Mean
		names[len(attr)-1-i] = a.Feature
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Permutation importance: %s (%s)", res.Model, label)
	p.X.Label.Text = "Mean decrease in ROC AUC"
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil { return err }
	bars.Horizontal = true
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalY(names...)
	h := r.Height
	if need := vg.Length(len(attr)) * vg.Points(18); need > h { h = need }
	return p.Save(r.Width, h, filepath.Join(dir, res.Model+".png"))
}

func writeAttributionCSV(path string, attr []evaluate.Attribution) error {
	f, err := os.Create(path)
	if err != nil { return err }
	defer f.Close()
	w := csv.NewWriter(f)
	rows := [][]string{{"feature", "mean", "std"}}
	for _, a := range attr {
		rows = append(rows, []string{a.Feature, strconv.FormatFloat(a.Mean, 'g', -1, 64), strconv.FormatFloat(a.Std, 'g', -1, 64)})
	}
	if err := w.WriteAll(rows); err != nil { return err }
	return f.Close()
}

func newROC(label, partition string) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC %s (%s)", label, partition)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1
	p.Legend.Top = false
	p.Legend.Left = false
	return p
}

func newPR(label, partition string) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Precision-recall %s (%s)", label, partition)
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1
	p.Legend.Top = true
	return p
}

func chance(p *plot.Plot) error {
	l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil { return err }
	l.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(l)
	return nil
}

// baseline draws the precision of a random classifier, the prevalence.
func baseline(p *plot.Plot, prevalence float64) error {
	l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: prevalence}, {X: 1, Y: prevalence}})
	if err != nil { return err }
	l.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(l)
	return nil
}

func xys(c metrics.Curve) plotter.XYs {
	pts := make(plotter.XYs, len(c.X))
	for i := range c.X { pts[i] = plotter.XY{X: c.X[i], Y: c.Y[i]} }
	return pts
}

// meanCurve interpolates every fold curve on curveGrid and averages them.
// PR curves run from high to low recall and are reversed first.
func meanCurve(curves []metrics.Curve, reversed bool) plotter.XYs {
	sum := make([]float64, len(curveGrid))
	for _, c := range curves {
		xs, ys := c.X, c.Y
		if reversed { xs, ys = reverse(xs), reverse(ys) }
		for i, v := range metrics.Interpolate(xs, ys, curveGrid) { sum[i] += v }
	}
	pts := make(plotter.XYs, len(curveGrid))
	for i, g := range curveGrid {
		pts[i] = plotter.XY{X: g}
		if len(curves) > 0 { pts[i].Y = sum[i] / float64(len(curves)) }
	}
	return pts
}

func meanAUC(curves []metrics.Curve) float64 {
	vals := make([]float64, len(curves))
	for i, c := range curves { vals[i] = c.AUC }
	m, _ := metrics.MeanStd(vals)
	return m
}

func reverse(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs { out[len(xs)-1-i] = v }
	return out
}

func finite(xs []float64) plotter.Values {
	var out plotter.Values
	for _, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) { out = append(out, v) }
	}
	return out
}

func saveTiled(path string, w, h vg.Length, plots ...*plot.Plot) error {
	img := vgimg.New(w, h)
	dc := draw.New(img)
	t := draw.Tiles{Rows: 1, Cols: len(plots), PadX: vg.Millimeter, PadY: vg.Millimeter}
	row := [][]*plot.Plot{plots}
	canvases := plot.Align(row, t, dc)
	for j, p := range plots { p.Draw(canvases[0][j]) }
	f, err := os.Create(path)
	if err != nil { return err }
	defer f.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil { return err }
	return f.Close()
}
