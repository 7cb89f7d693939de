// Package report renders attendance rows as downloadable Excel and PDF documents.
// Documents are built in memory and never written to disk.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/mahudhurio/core/attendance"
)

// File extensions & content types
const (
	ExtXLSX  = "xlsx"
	ExtPDF   = "pdf"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEPDF  = "application/pdf"
)

// Band is the attendance band of a record, used to colour report rows.
type Band int

const (
	BandGood     Band = iota // >= 75%
	BandLow                  // 65% - 74.99%
	BandCritical             // < 65%
)

// rgb hex colours of each band
var bandColors = map[Band]string{
	BandGood:     "C6EFCE",
	BandLow:      "FFEB9C",
	BandCritical: "FFC7CE",
}

const headerColor = "D7E4BC"

// Columns are the headers of the report table.
var Columns = []string{
	"S.No", "Registration No", "Name", "Course Code", "Course Name", "Attended", "Conducted", "Percentage",
}

// BandOf returns the band of an attendance percentage.
func BandOf(percentage float64) Band {
	switch {
	case percentage < attendance.CriticalThreshold:
		return BandCritical
	case percentage < attendance.LowThreshold:
		return BandLow
	default:
		return BandGood
	}
}

func (b Band) String() string {
	switch b {
	case BandGood:
		return "good"
	case BandLow:
		return "low"
	case BandCritical:
		return "critical"
	}
	return "unknown"
}

// Color returns the hex RGB fill colour of the band.
func (b Band) Color() string {
	return bandColors[b]
}

// RGB returns the fill colour of the band as 0-255 components.
func (b Band) RGB() (r, g, bl int) {
	return hexToRGB(b.Color())
}

func hexToRGB(hex string) (r, g, b int) {
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}

// Meta describes a report.
type Meta struct {
	Title       string
	Description string // human-readable description of the active filters
	GeneratedAt time.Time
}

func (m Meta) generatedAt() time.Time {
	if m.GeneratedAt.IsZero() {
		return time.Now()
	}
	return m.GeneratedAt
}

// Filename returns `{prefix}_{YYYYMMDD_HHMMSS}.{ext}`.
func Filename(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format("20060102_150405"), ext)
}

// DescribeFilter returns the default description of a filter, eg. "Course: CS-101 | Attendance below: 75%".
func DescribeFilter(f attendance.Filter) string {
	f = f.Normalized()

	var parts []string
	if f.Course != "" {
		parts = append(parts, "Course: "+f.Course)
	} else if len(f.ExcludeCourses) > 0 {
		parts = append(parts, "Excluded courses: "+strings.Join(f.ExcludeCourses, ", "))
	}
	if f.HasThreshold() {
		parts = append(parts, "Attendance below: "+strconv.FormatFloat(f.Threshold, 'f', -1, 64)+"%")
	}
	if f.Search != "" {
		parts = append(parts, "Search: "+f.Search)
	}
	if len(parts) == 0 {
		return "All records"
	}
	return strings.Join(parts, " | ")
}

// cells returns the text cells of the i-th (0-based) row.
func cells(i int, row attendance.RecordRow) []string {
	return []string{
		strconv.Itoa(i + 1),
		row.RegistrationNo,
		row.StudentName,
		row.CourseCode,
		row.CourseName,
		strconv.Itoa(row.Attended),
		strconv.Itoa(row.Conducted),
		strconv.FormatFloat(row.Rounded(), 'f', 1, 64) + "%",
	}
}
