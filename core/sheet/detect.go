package sheet

import (
	"regexp"
	"sort"
	"strings"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// "22IT580 - Data Mining", "BBA-101: Accounting", "CS-101 Data Structures"
	courseHeaderRegex = regexp.MustCompile(`^([A-Z0-9]+(?:-[A-Z0-9]+)*)(?:\s*[-–:]\s*|\s+)(.*\pL.*)$`)

	// "Registration No", "Reg. No", "REG.NO", "Registration Number"
	regNoRegex = regexp.MustCompile(`(?i)\breg(?:istration)?\.?\s*(?:no|num(?:ber)?)\b`)
)

// CourseHeader is a course found in the header area of a sheet.
type CourseHeader struct {
	Code   string
	Name   string
	Row    int
	Column int
}

// ColumnMap tells where each value of a data row is found. Missing columns are -1.
type ColumnMap struct {
	Registration int
	Name         int
	Admission    int
	Courses      []CourseColumns
}

// CourseColumns holds the (attended, conducted) column pair of a course.
type CourseColumns struct {
	Course    CourseHeader
	Attended  int
	Conducted int
}

// ScanCourseHeaders looks for "code + name" cells in the first maxRows rows.
// The first occurrence of a code wins. Results are ordered by column.
func ScanCourseHeaders(grid Grid, maxRows int) []CourseHeader {
	if maxRows > len(grid) {
		maxRows = len(grid)
	}

	seen := make(map[string]bool)
	var courses []CourseHeader
	for r := 0; r < maxRows; r++ {
		for c, cell := range grid[r] {
			code, name, ok := parseCourseHeader(cell)
			if !ok || seen[code] {
				continue
			}
			seen[code] = true
			courses = append(courses, CourseHeader{Code: code, Name: name, Row: r, Column: c})
		}
	}

	sort.SliceStable(courses, func(i, j int) bool { return courses[i].Column < courses[j].Column })
	return courses
}

func parseCourseHeader(cell string) (code, name string, ok bool) {
	m := courseHeaderRegex.FindStringSubmatch(strings.TrimSpace(cell))
	if m == nil || !core.IsCourseCode(m[1]) {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// FindHeaderRow returns the index of the first row holding a "Registration No" label.
// Student rows start right after it.
func FindHeaderRow(grid Grid) (int, error) {
	for r, row := range grid {
		if registrationColumn(row) >= 0 {
			return r, nil
		}
	}
	return -1, core.NewParseError("no \"Registration No\" header row found")
}

func registrationColumn(row []string) int {
	for c, cell := range row {
		if regNoRegex.MatchString(cell) {
			return c
		}
	}
	return -1
}

// MapColumns locates the student columns of the header row and the (attended, conducted)
// pair of each course. Course/"Attended" pairs are claimed closest first over the whole row,
// ties going to the rightmost column; the conducted count is the next column. Without any
// "Attended" label, a course's own column and its right neighbour are used. Courses sitting
// over a student column or with no usable pair are left out.
func MapColumns(header []string, courses []CourseHeader) ColumnMap {
	cm := ColumnMap{Registration: registrationColumn(header), Name: -1, Admission: -1}

	var attended []int
	for c, cell := range header {
		label := strings.ToUpper(cell)
		switch {
		case c == cm.Registration:
		case strings.Contains(label, "ADMISSION") || strings.HasPrefix(label, "ADM NO"):
			if cm.Admission < 0 {
				cm.Admission = c
			}
		case strings.Contains(label, "STUDENT NAME"):
			cm.Name = c
		case strings.Contains(label, "NAME"):
			if cm.Name < 0 {
				cm.Name = c
			}
		case strings.Contains(label, "ATTENDED"):
			attended = append(attended, c)
		}
	}
	if cm.Name < 0 && cm.Registration >= 0 {
		cm.Name = cm.Registration + 1
	}

	reserved := map[int]bool{cm.Registration: true, cm.Name: true, cm.Admission: true}
	assigned := make([]int, len(courses))
	for i, course := range courses {
		assigned[i] = -1
		if len(attended) == 0 && !reserved[course.Column] && !reserved[course.Column+1] {
			assigned[i] = course.Column
		}
	}
	if len(attended) > 0 {
		claimPairs(courses, attended, reserved, assigned)
	}

	for i, course := range courses {
		if assigned[i] >= 0 {
			cm.Courses = append(cm.Courses, CourseColumns{Course: course, Attended: assigned[i], Conducted: assigned[i] + 1})
		}
	}
	return cm
}

type pairCandidate struct {
	course, column, dist int
}

// claimPairs assigns "Attended" columns to courses by increasing distance.
func claimPairs(courses []CourseHeader, attended []int, reserved map[int]bool, assigned []int) {
	var candidates []pairCandidate
	for i, course := range courses {
		if reserved[course.Column] {
			continue
		}
		for _, c := range attended {
			dist := c - course.Column
			if dist < 0 {
				dist = -dist
			}
			candidates = append(candidates, pairCandidate{course: i, column: c, dist: dist})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.column != b.column {
			return a.column > b.column
		}
		return a.course < b.course
	})

	claimed := make(map[int]bool)
	for _, cand := range candidates {
		if claimed[cand.column] || assigned[cand.course] >= 0 {
			continue
		}
		claimed[cand.column] = true
		assigned[cand.course] = cand.column
	}
}
