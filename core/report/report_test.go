package report

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core/attendance"
)

var testRows = []attendance.RecordRow{
	{ID: 1, RegistrationNo: "REG001", StudentName: "Alice", CourseCode: "CS-101", CourseName: "Data Structures", Attended: 45, Conducted: 60, Percentage: 75},
	{ID: 2, RegistrationNo: "REG002", StudentName: "Bob", CourseCode: "CS-101", CourseName: "Data Structures", Attended: 30, Conducted: 60, Percentage: 50},
	{ID: 3, RegistrationNo: "REG003", StudentName: "Carol", CourseCode: "CS-102", CourseName: "Algorithms", Attended: 41, Conducted: 60, Percentage: 68.333333},
}

func TestBandOf(t *testing.T) {
	tests := []struct {
		pct  float64
		want Band
	}{
		{100, BandGood},
		{75, BandGood},
		{74.99, BandLow},
		{65, BandLow},
		{64.99, BandCritical},
		{0, BandCritical},
	}
	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.pct, 'f', -1, 64), func(t *testing.T) {
			assert.Equal(t, tt.want, BandOf(tt.pct))
		})
	}
}

func TestBand_RGB(t *testing.T) {
	r, g, b := BandGood.RGB()
	assert.Equal(t, []int{0xC6, 0xEF, 0xCE}, []int{r, g, b})
	r, g, b = BandCritical.RGB()
	assert.Equal(t, []int{0xFF, 0xC7, 0xCE}, []int{r, g, b})
}

func TestFilename(t *testing.T) {
	ts := time.Date(2025, 10, 1, 23, 5, 42, 0, time.UTC)
	assert.Equal(t, "attendance_report_20251001_230542.xlsx", Filename("attendance_report", ExtXLSX, ts))
	assert.Equal(t, "attendance_report_20251001_230542.pdf", Filename("attendance_report", ExtPDF, ts))
}

func TestDescribeFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter attendance.Filter
		want   string
	}{
		{name: "all", filter: attendance.Filter{Threshold: 100}, want: "All records"},
		{name: "defaults", filter: attendance.NewFilter(), want: "Attendance below: 75%"},
		{
			name:   "course ignores excludes",
			filter: attendance.Filter{Course: "cs-101", Threshold: 65, Search: "ali", ExcludeCourses: []string{"CS-102"}},
			want:   "Course: CS-101 | Attendance below: 65% | Search: ali",
		},
		{
			name:   "excludes",
			filter: attendance.Filter{Threshold: 100, ExcludeCourses: []string{"CS-102", "MA-201"}},
			want:   "Excluded courses: CS-102, MA-201",
		},
		{name: "fractional threshold", filter: attendance.Filter{Threshold: 72.5}, want: "Attendance below: 72.5%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeFilter(tt.filter))
		})
	}
}

func TestExcel(t *testing.T) {
	data, err := Excel(testRows, Meta{Title: "Attendance Report", Description: "All records"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, firstDataRow-1+len(testRows))

	assert.Equal(t, "Attendance Report", rows[titleRow-1][0])
	assert.Equal(t, "All records", rows[descriptionRow-1][0])
	assert.Equal(t, Columns, rows[headerRow-1])

	wantBands := []Band{BandGood, BandCritical, BandLow}
	for i, want := range testRows {
		r := firstDataRow + i
		got := rows[r-1]
		assert.Equal(t, strconv.Itoa(i+1), got[0])
		assert.Equal(t, want.RegistrationNo, got[1])
		assert.Equal(t, want.StudentName, got[2])
		assert.Equal(t, want.CourseCode, got[3])

		for col := 1; col <= len(Columns); col++ {
			styleID, err := f.GetCellStyle(SheetName, cellName(col, r))
			require.NoError(t, err)
			style, err := f.GetStyle(styleID)
			require.NoError(t, err)
			require.NotEmpty(t, style.Fill.Color)
			assert.Equal(t, wantBands[i].Color(), style.Fill.Color[0], "row %d col %d", r, col)
		}
	}

	styleID, err := f.GetCellStyle(SheetName, cellName(1, headerRow))
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	width, err := f.GetColWidth(SheetName, "E")
	require.NoError(t, err)
	assert.Equal(t, float64(len("Data Structures")+2), width)
}

func TestExcel_NoRows(t *testing.T) {
	data, err := Excel(nil, Meta{Title: "Attendance Report"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, headerRow)
	assert.Equal(t, Columns, rows[headerRow-1])
}

func TestPDF(t *testing.T) {
	compressPDF = false
	defer func() { compressPDF = true }()

	ts := time.Date(2025, 10, 1, 23, 5, 42, 0, time.UTC)
	data, err := PDF(testRows, Meta{Title: "Attendance Report", Description: "All records", GeneratedAt: ts})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Contains(t, string(data), "(Filters Applied: All records)")
	assert.Contains(t, string(data), "(Generated on: 01-10-2025 23:05:42 | Total Records: 3)")

	// rows appear in order, each drawn with the fill colour of its band
	wantFills := []string{
		"0.776 0.937 0.808 rg", // good
		"1.000 0.780 0.808 rg", // critical
		"1.000 0.922 0.612 rg", // low
	}
	last := -1
	for i, row := range testRows {
		idx := bytes.Index(data, []byte("("+row.RegistrationNo+")"))
		require.NotEqual(t, -1, idx, row.RegistrationNo)
		assert.Greater(t, idx, last)
		last = idx

		assert.Equal(t, wantFills[i], lastFillOperator(data[:idx]), row.RegistrationNo)
	}
}

// lastFillOperator returns the last "r g b rg" line of an uncompressed PDF content stream.
func lastFillOperator(content []byte) string {
	op := bytes.LastIndex(content, []byte(" rg\n"))
	if op < 0 {
		return ""
	}
	start := bytes.LastIndexByte(content[:op], '\n') + 1
	return string(content[start : op+len(" rg")])
}

func TestPDF_ManyRows(t *testing.T) {
	compressPDF = false
	defer func() { compressPDF = true }()

	rows := make([]attendance.RecordRow, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, attendance.RecordRow{
			RegistrationNo: "REG" + strconv.Itoa(1000+i),
			StudentName:    "A student with a rather long name that will not fit in its column",
			CourseCode:     "CS-101",
			Percentage:     float64(i % 100),
		})
	}

	data, err := PDF(rows, Meta{Title: "Attendance Report"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "(REG1119)")
	assert.Contains(t, string(data), "Total Records: 120")
	assert.Contains(t, string(data), "(Page 2/")
}
