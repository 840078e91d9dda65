// Package export renders report datasets into downloadable files.
package export

import "time"

// Dataset is one table of an export: ordered headers and rows keyed by header.
type Dataset struct {
	Name    string
	Headers []string
	Rows    []map[string]string
}

// Report groups the tables of one export document.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Sections    []Dataset
}
