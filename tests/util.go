package testutil

import (
	"bytes"
	"encoding/csv"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
)

type (
	// Course is a course block of a generated attendance sheet.
	Course struct {
		Code string
		Name string
	}

	// Student is a row of a generated attendance sheet.
	// Periods maps course codes to (attended, conducted); courses missing from it are written as "-".
	Student struct {
		RegNo   string
		Name    string
		Periods map[string][2]int
	}
)

// Sheet builds the cells of an attendance sheet in the usual layout: a title, the course headers,
// the column-header row, then one row per student with an (attended, conducted, %) block per course.
func Sheet(courses []Course, students []Student) [][]string {
	width := 3 + 3*len(courses)
	row := func() []string { return make([]string, width) }

	title := row()
	title[0] = "Institute of Testing"
	courseRow := row()
	header := row()
	header[0], header[1], header[2] = "S.No", "Registration No", "Student Name"
	for i, c := range courses {
		col := 3 + 3*i
		courseRow[col] = c.Code + " - " + c.Name
		header[col], header[col+1], header[col+2] = "Attended", "Conducted", "%"
	}

	grid := [][]string{title, row(), courseRow, header}
	for i, s := range students {
		r := row()
		r[0], r[1], r[2] = strconv.Itoa(i+1), s.RegNo, s.Name
		for j, c := range courses {
			col := 3 + 3*j
			p, ok := s.Periods[c.Code]
			if !ok {
				r[col], r[col+1], r[col+2] = "-", "-", "-"
				continue
			}
			r[col], r[col+1] = strconv.Itoa(p[0]), strconv.Itoa(p[1])
			r[col+2] = strconv.FormatFloat(core.Percentage(p[0], p[1]), 'f', 2, 64)
		}
		grid = append(grid, r)
	}
	return grid
}

// XLSX encodes rows as the only sheet of an xlsx workbook. Numeric strings are written as numbers.
func XLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for r, cells := range rows {
		values := make([]interface{}, len(cells))
		for c, cell := range cells {
			if n, err := strconv.ParseFloat(cell, 64); err == nil {
				values[c] = n
			} else {
				values[c] = cell
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			t.Fatalf("XLSX(): %v", err)
		}
		if err = f.SetSheetRow(sheet, axis, &values); err != nil {
			t.Fatalf("XLSX(): %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("XLSX(): %v", err)
	}
	return buf.Bytes()
}

// CSV encodes rows as a csv document.
func CSV(t *testing.T, rows [][]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("CSV(): %v", err)
	}
	return buf.Bytes()
}

func Upload(filename string, content []byte) attendance.Upload {
	return attendance.Upload{Filename: filename, Content: bytes.NewReader(content)}
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	return logger
}

// NewAttendanceService returns an attendance.Service backed by a fresh in-memory store.
func NewAttendanceService(t *testing.T, conf ...*core.Config) (*attendance.Service, attendance.Repository) {
	t.Helper()

	cfg := core.NewTestConfig()
	if len(conf) > 0 {
		cfg = conf[0]
	}
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("NewAttendanceService() failed: %v", err)
	}
	repo := inmemdb.NewAttendanceRepository(db)
	return attendance.NewService(repo, NewLogger(cfg), cfg), repo
}
