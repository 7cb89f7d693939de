package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	pdfMargin    = 10.0
	pdfRowHeight = 7.0
	pdfFont      = "Helvetica"
)

// column widths in mm, for an A4 landscape page (277mm between margins)
var pdfColWidths = []float64{12, 36, 62, 28, 75, 20, 22, 22}

var compressPDF = true

// PDF renders rows as an A4 landscape table, rows filled with the colour of their attendance band.
// The last line holds the generation time and the number of records.
func PDF(rows []attendance.RecordRow, meta Meta) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(compressPDF)
	pdf.SetTitle(meta.Title, true)
	pdf.SetCreationDate(meta.generatedAt())
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+5)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // utf-8 => cp1252

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin - 2)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont(pdfFont, "B", 9)
		r, g, b := hexToRGB(headerColor)
		pdf.SetFillColor(r, g, b)
		for i, col := range Columns {
			pdf.CellFormat(pdfColWidths[i], pdfRowHeight, col, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", 8)
	}

	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, tr(meta.Title), "", 1, "C", false, 0, "")
	if meta.Description != "" {
		pdf.SetFont(pdfFont, "", 10)
		pdf.MultiCell(0, 6, tr("Filters Applied: "+meta.Description), "", "L", false)
	}
	pdf.Ln(4)

	header()
	_, pageHeight := pdf.GetPageSize()
	for i, row := range rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin-5 {
			pdf.AddPage()
			header()
		}
		r, g, b := BandOf(row.Percentage).RGB()
		pdf.SetFillColor(r, g, b)
		for j, text := range cells(i, row) {
			align := "L"
			if j == 0 || j >= 5 {
				align = "C"
			}
			pdf.CellFormat(pdfColWidths[j], pdfRowHeight, fit(pdf, tr(text), pdfColWidths[j]), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont(pdfFont, "", 9)
	footer := fmt.Sprintf("Generated on: %s | Total Records: %d", meta.generatedAt().Format("02-01-2006 15:04:05"), len(rows))
	pdf.CellFormat(0, 6, footer, "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing pdf")
	}
	return buf.Bytes(), nil
}

// fit truncates s so that it fits in a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	const padding = 2
	if pdf.GetStringWidth(s) <= w-padding {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w-padding {
		s = s[:len(s)-1]
	}
	return s + "..."
}
