package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadTable loads a .csv or .xlsx file. The first row is the header.
func ReadTable(path string) (Table, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return Table{}, fmt.Errorf("unsupported input extension: %s", filepath.Ext(path))
	}
	if err != nil { return Table{}, fmt.Errorf("read %s: %w", path, err) }
	if len(rows) < 2 { return Table{}, fmt.Errorf("read %s: need header + at least one row", path) }
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] { header[i] = strings.TrimSpace(h) }
	t := Table{Columns: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, r := range rows[1:] {
		row := make([]string, len(header))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil { return nil, err }
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil { return nil, err }
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 { return nil, fmt.Errorf("workbook has no sheets") }
	return f.GetRows(sheets[0])
}

// WriteCSV writes t with a header row.
func WriteCSV(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return err }
	f, err := os.Create(path)
	if err != nil { return err }
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil { return err }
	if err := w.WriteAll(t.Rows); err != nil { return err }
	w.Flush()
	return w.Error()
}
