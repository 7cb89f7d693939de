package sheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/trezcool/mahudhurio/core"
)

// DefaultHeaderScanRows is the number of top rows searched for course headers.
const DefaultHeaderScanRows = 10

// Options tunes the parsing of a sheet.
type Options struct {
	HeaderScanRows int
}

// Entry is one (student, course) attendance value extracted from a data row.
type Entry struct {
	RegistrationNo string
	AdmissionNo    string
	StudentName    string
	CourseCode     string
	CourseName     string
	Attended       int
	Conducted      int
	Percentage     float64
	Row            int // 0-based grid row, for error reporting
}

// Result is what Parse extracted from a sheet.
type Result struct {
	HeaderRow int
	Courses   []CourseHeader // mapped courses only
	Entries   []Entry
}

// Students returns the number of distinct registration numbers in the result.
func (res Result) Students() int {
	seen := make(map[string]struct{}, len(res.Entries))
	for _, e := range res.Entries {
		seen[e.RegistrationNo] = struct{}{}
	}
	return len(seen)
}

// Parse extracts attendance entries from a decoded grid.
// It fails with a *core.ParseError when the layout is not recognized, in which case no entries are returned.
func Parse(grid Grid, opts Options) (Result, error) {
	if len(grid) == 0 {
		return Result{}, core.NewParseError("spreadsheet is empty")
	}
	if opts.HeaderScanRows <= 0 {
		opts.HeaderScanRows = DefaultHeaderScanRows
	}

	headerIdx, err := FindHeaderRow(grid)
	if err != nil {
		return Result{}, err
	}

	// course headers live above the column-header row
	scan := opts.HeaderScanRows
	if headerIdx < scan {
		scan = headerIdx
	}
	cm := MapColumns(grid.Row(headerIdx), ScanCourseHeaders(grid, scan))

	res := Result{HeaderRow: headerIdx}
	for _, cc := range cm.Courses {
		res.Courses = append(res.Courses, cc.Course)
	}

	for r := headerIdx + 1; r < len(grid); r++ {
		regNo := core.CleanCode(grid.Cell(r, cm.Registration))
		if !isRegistrationNo(regNo) || registrationColumn(grid.Row(r)) >= 0 {
			continue // blank, footer or repeated header row
		}

		name := core.CleanString(grid.Cell(r, cm.Name))
		var admNo string
		if cm.Admission >= 0 {
			admNo = grid.Cell(r, cm.Admission)
		}

		for _, cc := range cm.Courses {
			attended, ok := parseCount(grid.Cell(r, cc.Attended))
			if !ok {
				continue
			}
			conducted, ok := parseCount(grid.Cell(r, cc.Conducted))
			if !ok {
				continue
			}
			res.Entries = append(res.Entries, Entry{
				RegistrationNo: regNo,
				AdmissionNo:    admNo,
				StudentName:    name,
				CourseCode:     cc.Course.Code,
				CourseName:     cc.Course.Name,
				Attended:       attended,
				Conducted:      conducted,
				Percentage:     core.Percentage(attended, conducted),
				Row:            r,
			})
		}
	}
	return res, nil
}

func isRegistrationNo(s string) bool {
	switch strings.ToUpper(s) {
	case "", "-", "NAN", "NONE", "NULL":
		return false
	}
	return true
}

// parseCount reads a period count in [0, MaxInt32]. Fractional values are truncated.
func parseCount(s string) (int, bool) {
	if s == "" || s == "-" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
