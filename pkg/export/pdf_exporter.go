package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	portraitWidth  = 190.0
	landscapeWidth = 277.0
	wideTable      = 6
)

// PDFExporter renders reports as tabular PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render writes a title block followed by one table per section. Reports with a table
// wider than six columns are laid out in landscape.
func (e *PDFExporter) Render(report Report) ([]byte, error) {
	if len(report.Sections) == 0 {
		return nil, fmt.Errorf("pdf requires at least one section")
	}
	orientation, width := "P", portraitWidth
	for _, section := range report.Sections {
		if len(section.Headers) == 0 {
			return nil, fmt.Errorf("pdf section %q has no headers", section.Name)
		}
		if len(section.Headers) > wideTable {
			orientation, width = "L", landscapeWidth
		}
	}

	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetTitle(report.Title, true)
	pdf.AddPage()

	if report.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, report.Title, "", 1, "C", false, 0, "")
	}
	if !report.GeneratedAt.IsZero() {
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, "Generated "+report.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range report.Sections {
		if section.Name != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, section.Name, "", 1, "L", false, 0, "")
		}
		colWidth := width / float64(len(section.Headers))

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, header := range section.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		if len(section.Rows) == 0 {
			pdf.CellFormat(width, 7, "No data", "1", 1, "C", false, 0, "")
		}
		for _, row := range section.Rows {
			for _, header := range section.Headers {
				pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
