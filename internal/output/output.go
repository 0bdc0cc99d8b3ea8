// Package output writes scan results as CSV files and as an Excel workbook.
package output

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/marcuoli/go-reachscan/pkg/reachscan/fingerprint"
	"github.com/marcuoli/go-reachscan/pkg/reachscan/probe"
)

const (
	// DefaultPairsFile is the default path of the pairs table.
	DefaultPairsFile = "ip_pairs_results.csv"
	// DefaultReachableFile is the default path of the reachable table.
	DefaultReachableFile = "accessible_ips.csv"
)

// WriteError reports a failure to persist a table.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "write " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Table is a header row plus data rows.
type Table struct {
	// Name is used as the sheet name in a workbook.
	Name   string
	Header []string
	Rows   [][]string
}

// PairsTable builds the pairs table. It has a header even when there are no pairs.
func PairsTable(pairs []fingerprint.Pair) Table {
	t := Table{
		Name:   "pairs",
		Header: []string{"address1", "tag1", "address2", "tag2", "matchLabel"},
		Rows:   make([][]string, 0, len(pairs)),
	}
	for _, p := range pairs {
		t.Rows = append(t.Rows, []string{
			p.First.Addr.String(), p.First.Tag(),
			p.Second.Addr.String(), p.Second.Tag(),
			p.Label(),
		})
	}
	return t
}

// ReachableTable builds the reachable table in record order. When hostnames
// is non-nil it must be index-aligned with records and adds a hostname column.
func ReachableTable(records []probe.Record, hostnames []string) Table {
	t := Table{
		Name:   "reachable",
		Header: []string{"address", "tag", "fingerprint"},
		Rows:   make([][]string, 0, len(records)),
	}
	if hostnames != nil {
		t.Header = append(t.Header, "hostname")
	}
	for i, r := range records {
		row := []string{r.Addr.String(), r.Tag(), strconv.Itoa(fingerprint.Sum(r.Addr))}
		if hostnames != nil {
			name := ""
			if i < len(hostnames) {
				name = hostnames[i]
			}
			row = append(row, name)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// WritePairs writes the pairs table as CSV.
func WritePairs(path string, pairs []fingerprint.Pair) error {
	return WriteCSV(path, PairsTable(pairs))
}

// WriteReachable writes the reachable table as CSV.
func WriteReachable(path string, records []probe.Record, hostnames []string) error {
	return WriteCSV(path, ReachableTable(records, hostnames))
}

// WriteCSV writes t to path, replacing any existing file. Errors are returned
// as *WriteError.
func WriteCSV(path string, t Table) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	w := csv.NewWriter(file)
	if err := w.Write(t.Header); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// WriteWorkbook writes each table to its own sheet, in order, and saves the
// workbook to path.
func WriteWorkbook(path string, tables ...Table) error {
	if len(tables) == 0 {
		return &WriteError{Path: path, Err: errors.New("no tables to write")}
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		idx, err := f.NewSheet(t.Name)
		if err != nil {
			return &WriteError{Path: path, Err: errors.Wrapf(err, "sheet %s", t.Name)}
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := setRow(f, t.Name, 1, t.Header); err != nil {
			return &WriteError{Path: path, Err: err}
		}
		for r, row := range t.Rows {
			if err := setRow(f, t.Name, r+2, row); err != nil {
				return &WriteError{Path: path, Err: err}
			}
		}
	}

	// NewFile always creates Sheet1.
	if !hasTable(tables, "Sheet1") {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return errors.Wrapf(f.SetSheetRow(sheet, cell, &cells), "sheet %s row %d", sheet, row)
}

func hasTable(tables []Table, name string) bool {
	for _, t := range tables {
		if t.Name == name {
			return true
		}
	}
	return false
}
