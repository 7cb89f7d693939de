package report

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core/attendance"
)

// SheetName is the name of the worksheet holding the report.
const SheetName = "Attendance Report"

// Layout of the worksheet (1-based rows)
const (
	titleRow       = 1
	descriptionRow = 2
	headerRow      = 4
	firstDataRow   = 5
)

const (
	minColWidth = 6.0
	maxColWidth = 60.0
)

// Excel renders rows as an xlsx workbook: a title, the filter description, the table headers,
// then one row per record filled with the colour of its attendance band.
func Excel(rows []attendance.RecordRow, meta Meta) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}

	styles, err := newExcelStyles(f)
	if err != nil {
		return nil, err
	}

	widths := make([]int, len(Columns))
	track := func(values []string) {
		for i, v := range values {
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}

	// title & description
	for _, line := range []struct {
		row   int
		text  string
		style int
	}{
		{titleRow, meta.Title, styles.title},
		{descriptionRow, meta.Description, styles.description},
	} {
		first := cellName(1, line.row)
		if err = f.SetCellValue(SheetName, first, line.text); err != nil {
			return nil, errors.Wrap(err, "writing report heading")
		}
		if err = f.MergeCell(SheetName, first, cellName(len(Columns), line.row)); err != nil {
			return nil, errors.Wrap(err, "merging report heading")
		}
		if err = f.SetCellStyle(SheetName, first, first, line.style); err != nil {
			return nil, errors.Wrap(err, "styling report heading")
		}
	}

	// headers
	if err = setRow(f, headerRow, toInterfaces(Columns)); err != nil {
		return nil, errors.Wrap(err, "writing headers")
	}
	if err = f.SetCellStyle(SheetName, cellName(1, headerRow), cellName(len(Columns), headerRow), styles.header); err != nil {
		return nil, errors.Wrap(err, "styling headers")
	}
	track(Columns)

	// records
	for i, row := range rows {
		r := firstDataRow + i
		values := []interface{}{
			i + 1,
			row.RegistrationNo,
			row.StudentName,
			row.CourseCode,
			row.CourseName,
			row.Attended,
			row.Conducted,
			row.Rounded(),
		}
		if err = setRow(f, r, values); err != nil {
			return nil, errors.Wrapf(err, "writing row %d", i+1)
		}
		style := styles.bands[BandOf(row.Percentage)]
		if err = f.SetCellStyle(SheetName, cellName(1, r), cellName(len(Columns), r), style); err != nil {
			return nil, errors.Wrapf(err, "styling row %d", i+1)
		}
		track(cells(i, row))
	}

	// auto-size columns
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(w) + 2
		if width < minColWidth {
			width = minColWidth
		} else if width > maxColWidth {
			width = maxColWidth
		}
		if err = f.SetColWidth(SheetName, col, col, width); err != nil {
			return nil, errors.Wrap(err, "sizing columns")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing xlsx")
	}
	return buf.Bytes(), nil
}

type excelStyles struct {
	title       int
	description int
	header      int
	bands       map[Band]int
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}

	var s excelStyles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, errors.Wrap(err, "creating title style")
	}
	if s.description, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Italic: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, errors.Wrap(err, "creating description style")
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	}); err != nil {
		return s, errors.Wrap(err, "creating header style")
	}

	s.bands = make(map[Band]int, len(bandColors))
	for band, color := range bandColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			Border: border,
		})
		if err != nil {
			return s, errors.Wrapf(err, "creating %s band style", band)
		}
		s.bands[band] = id
	}
	return s, nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	return f.SetSheetRow(SheetName, cellName(1, row), &values)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func toInterfaces(ss []string) []interface{} {
	values := make([]interface{}, len(ss))
	for i, s := range ss {
		values[i] = s
	}
	return values
}
