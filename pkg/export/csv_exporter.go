package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders reports as CSV. Multi-section reports are written as consecutive
// tables, each preceded by a "# name" line and separated by a blank line.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the report.
func (e *CSVExporter) Render(report Report) ([]byte, error) {
	if len(report.Sections) == 0 {
		return nil, fmt.Errorf("csv requires at least one section")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	multi := len(report.Sections) > 1
	for i, section := range report.Sections {
		if len(section.Headers) == 0 {
			return nil, fmt.Errorf("csv section %q has no headers", section.Name)
		}
		if multi {
			if i > 0 {
				writer.Flush()
				buf.WriteByte('\n')
			}
			if err := writer.Write([]string{"# " + section.Name}); err != nil {
				return nil, fmt.Errorf("write csv section name: %w", err)
			}
		}
		if err := writer.Write(section.Headers); err != nil {
			return nil, fmt.Errorf("write csv headers: %w", err)
		}
		for _, row := range section.Rows {
			record := make([]string, len(section.Headers))
			for j, header := range section.Headers {
				record[j] = row[header]
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
