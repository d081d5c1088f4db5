package output

import (
	"bytes"
	"encoding/json"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Rows  []Row    `json:"rows"`
	Stats []Stat   `json:"stats"`
	Meta  jsonMeta `json:"meta"`
}

type jsonMeta struct {
	Title      string   `json:"title"`
	Source     string   `json:"source"`
	ManifestID string   `json:"manifest_id,omitempty"`
	CreatedAt  string   `json:"created_at,omitempty"`
	OK         bool     `json:"ok"`
	TotalSize  uint64   `json:"total_size"`
	Warnings   []string `json:"warnings,omitempty"`
}

// JSONFormatter formats output as a single indented JSON object with
// rows, stats and meta sections.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	out := jsonOutput{
		Rows:  rows,
		Stats: r.Stats,
		Meta: jsonMeta{
			Title:      r.Title,
			Source:     r.Source,
			ManifestID: r.ManifestID,
			CreatedAt:  r.CreatedAt,
			OK:         r.OK,
			TotalSize:  r.TotalSize(),
			Warnings:   r.Warnings,
		},
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per row.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	for _, row := range r.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
