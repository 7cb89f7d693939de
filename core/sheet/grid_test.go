package sheet_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/sheet"
	"github.com/trezcool/mahudhurio/tests"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"attendance.xlsx", true},
		{"ATTENDANCE.XLSX", true},
		{"old.xls", true},
		{"export.csv", true},
		{"report.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, sheet.IsSupported(tt.filename))
		})
	}
}

func TestReadGrid_CSV(t *testing.T) {
	content := "\ufeffTitle,,\n  Reg No , Name ,x\nREG001,Alice\n,,\n\n"

	grid, err := sheet.ReadGrid("a.csv", strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, sheet.Grid{
		{"Title", "", ""},
		{"Reg No", "Name", "x"},
		{"REG001", "Alice"},
	}, grid)
	assert.Equal(t, "Alice", grid.Cell(2, 1))
	assert.Equal(t, "", grid.Cell(2, 2))
	assert.Equal(t, "", grid.Cell(9, 0))
	assert.False(t, grid.IsBlankRow(0))
	assert.True(t, grid.IsBlankRow(42))
}

func TestReadGrid_XLSX(t *testing.T) {
	rows := [][]string{
		{"Institute"},
		{"", "CS-101 - Data Structures"},
		{"Registration No", "Attended", "Conducted"},
		{"REG001", "45", "60"},
	}

	grid, err := sheet.ReadGrid("a.xlsx", bytes.NewReader(testutil.XLSX(t, rows)))
	require.NoError(t, err)

	require.Len(t, grid, 4)
	assert.Equal(t, "CS-101 - Data Structures", grid.Cell(1, 1))
	assert.Equal(t, []string{"REG001", "45", "60"}, grid.Row(3))
}

func TestReadGrid_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{name: "unsupported format", filename: "a.pdf", content: []byte("%PDF-1.4")},
		{name: "empty csv", filename: "a.csv", content: nil},
		{name: "blank csv", filename: "a.csv", content: []byte(" , \n,\n")},
		{name: "corrupt xlsx", filename: "a.xlsx", content: []byte("not a zip file")},
		{name: "corrupt xls", filename: "a.xls", content: []byte("not an ole2 file")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, err := sheet.ReadGrid(tt.filename, bytes.NewReader(tt.content))
			require.Error(t, err)
			assert.True(t, core.IsParseError(err), "got %v", err)
			assert.Nil(t, grid)
		})
	}
}
