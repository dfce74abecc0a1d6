// Package report persists evaluation results under a run directory and
// renders the per-label figures.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"outcomeeval/internal/aggregate"
)

const (
	RecordFile   = "all_model_metrics.json"
	TablesDir    = "data_frames"
	WorkbookFile = "metrics.xlsx"
	SummaryFile  = "run.json"
)

// Store writes the per-label records and the run-scoped tables:
//
//	<run>/<label>/all_model_metrics.json
//	<run>/data_frames/<metric>.csv
//	<run>/data_frames/metrics.xlsx
type Store struct {
	Root string
	log  *zap.Logger
}

func NewStore(root string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, TablesDir), 0o755); err != nil { return nil, err }
	if log == nil { log = zap.NewNop() }
	return &Store{Root: root, log: log}, nil
}

// LabelDir is the output directory of one label.
func (s *Store) LabelDir(label string) string { return filepath.Join(s.Root, label) }

func (s *Store) WriteRecord(label string, rec aggregate.Record) error {
	dir := s.LabelDir(label)
	if err := os.MkdirAll(dir, 0o755); err != nil { return err }
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil { return fmt.Errorf("encode record: %w", err) }
	path := filepath.Join(dir, RecordFile)
	if err := os.WriteFile(path, b, 0o644); err != nil { return err }
	s.log.Debug("record written", zap.String("path", path))
	return nil
}

// WriteTables overwrites one CSV per metric and the workbook holding the
// same tables as sheets. Cells of skipped models are left empty.
func (s *Store) WriteTables(t *aggregate.Tables) error {
	dir := filepath.Join(s.Root, TablesDir)
	for _, m := range t.Metrics() {
		if err := writeTableCSV(filepath.Join(dir, m+".csv"), m, t); err != nil { return fmt.Errorf("table %s: %w", m, err) }
	}
	if err := writeWorkbook(filepath.Join(dir, WorkbookFile), t); err != nil { return fmt.Errorf("workbook: %w", err) }
	return nil
}

func tableRows(metric string, t *aggregate.Tables) [][]string {
	header := append([]string{""}, t.Labels()...)
	rows := [][]string{header}
	for _, model := range t.Models() {
		row := []string{model}
		for _, col := range t.Labels() {
			v, ok := t.Value(metric, model, col)
			row = append(row, formatCell(v, ok))
		}
		rows = append(rows, row)
	}
	return rows
}

func formatCell(v float64, ok bool) string {
	if !ok || math.IsNaN(v) { return "" }
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeTableCSV(path, metric string, t *aggregate.Tables) error {
	f, err := os.Create(path)
	if err != nil { return err }
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(tableRows(metric, t)); err != nil { return err }
	return f.Close()
}

func writeWorkbook(path string, t *aggregate.Tables) error {
	f := excelize.NewFile()
	defer f.Close()
	first := f.GetSheetList()[0]
	for i, m := range t.Metrics() {
		if i == 0 {
			if err := f.SetSheetName(first, m); err != nil { return err }
		} else if _, err := f.NewSheet(m); err != nil {
			return err
		}
		for r, row := range tableRows(m, t) {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil { return err }
			vals := make([]interface{}, len(row))
			for k, v := range row {
				vals[k] = v
				if n, err := strconv.ParseFloat(v, 64); err == nil && r > 0 && k > 0 { vals[k] = n }
			}
			if err := f.SetSheetRow(m, cell, &vals); err != nil { return err }
		}
	}
	return f.SaveAs(path)
}

// Summary describes a finished or running evaluation for the dashboard.
type Summary struct {
	RunID    string    `json:"run_id"`
	Dataset  string    `json:"dataset"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Labels   []string  `json:"labels"`
	Models   []string  `json:"models"`
	Metrics  []string  `json:"metrics"`
	Warnings []string  `json:"warnings,omitempty"`
	Failed   string    `json:"failed,omitempty"`
}

func (s *Store) WriteSummary(sum Summary) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil { return err }
	return os.WriteFile(filepath.Join(s.Root, SummaryFile), b, 0o644)
}

func ReadSummary(root string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(filepath.Join(root, SummaryFile))
	if err != nil { return sum, err }
	err = json.Unmarshal(b, &sum)
	return sum, err
}

func ReadRecord(root, label string) (aggregate.Record, error) {
	var rec aggregate.Record
	b, err := os.ReadFile(filepath.Join(root, label, RecordFile))
	if err != nil { return rec, err }
	err = json.Unmarshal(b, &rec)
	return rec, err
}

// ReadTable loads data_frames/<metric>.csv as rows of strings.
func ReadTable(root, metric string) ([][]string, error) {
	f, err := os.Open(filepath.Join(root, TablesDir, metric+".csv"))
	if err != nil { return nil, err }
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}
