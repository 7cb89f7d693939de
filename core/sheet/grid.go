// Package sheet decodes attendance spreadsheets into a grid of cells and extracts
// per-student, per-course attendance entries from it.
package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
)

// Supported file extensions
const (
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
	ExtCSV  = ".csv"
)

// Grid is a decoded sheet: rows of trimmed cell values. Rows may have different lengths.
type Grid [][]string

// Cell returns the value at (row, col), or "" when out of range.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// Row returns the cells of a row, or nil when out of range.
func (g Grid) Row(row int) []string {
	if row < 0 || row >= len(g) {
		return nil
	}
	return g[row]
}

// IsBlankRow reports whether every cell of the row is empty.
func (g Grid) IsBlankRow(row int) bool {
	for _, c := range g.Row(row) {
		if c != "" {
			return false
		}
	}
	return true
}

// IsSupported reports whether files with this name can be decoded.
func IsSupported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXLSX, ExtXLS, ExtCSV:
		return true
	}
	return false
}

// ReadGrid decodes the first (or active) sheet of a spreadsheet file.
// The format is chosen from the filename extension.
func ReadGrid(filename string, r io.Reader) (Grid, error) {
	var grid Grid
	var err error

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ExtXLSX:
		grid, err = readXLSX(r)
	case ExtXLS:
		grid, err = readXLS(r)
	case ExtCSV:
		grid, err = readCSV(r)
	default:
		return nil, core.NewParseError(fmt.Sprintf("unsupported file format %q", ext))
	}
	if err != nil {
		return nil, err
	}

	grid = normalize(grid)
	if len(grid) == 0 {
		return nil, core.NewParseError("spreadsheet is empty")
	}
	return grid, nil
}

func readXLSX(r io.Reader) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, core.NewParseError("unreadable xlsx file", err)
	}
	defer func() { _ = f.Close() }()

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, core.NewParseError("xlsx file contains no sheets")
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, core.NewParseError(fmt.Sprintf("reading sheet %q", name), err)
	}
	return rows, nil
}

func readXLS(r io.Reader) (grid Grid, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading xls content")
	}

	// the xls decoder panics on some malformed files
	defer func() {
		if rec := recover(); rec != nil {
			grid, err = nil, core.NewParseError("unreadable xls file", fmt.Errorf("%v", rec))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, core.NewParseError("unreadable xls file", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, core.NewParseError("xls file contains no workbook")
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, core.NewParseError("xls file contains no sheets")
	}

	grid = make(Grid, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func readCSV(r io.Reader) (Grid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, core.NewParseError("unreadable csv file", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff") // BOM
	}
	return rows, nil
}

// normalize trims all cells and drops trailing blank rows.
func normalize(grid Grid) Grid {
	last := -1
	for i, row := range grid {
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
			if row[j] != "" {
				last = i
			}
		}
	}
	return grid[:last+1]
}
