package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// JSONExporter writes the metric payload itself rather than its tabular projection.
type JSONExporter struct{}

// NewJSONExporter constructs a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

type jsonDocument struct {
	Title       string      `json:"title"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Data        interface{} `json:"data"`
}

// Render wraps data with the report title and generation time, indented for reading.
func (e *JSONExporter) Render(title string, generatedAt time.Time, data interface{}) ([]byte, error) {
	payload, err := json.MarshalIndent(jsonDocument{Title: title, GeneratedAt: generatedAt.UTC(), Data: data}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return append(payload, '\n'), nil
}
