package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

type yamlOutput struct {
	Rows  []Row    `yaml:"rows"`
	Stats []Stat   `yaml:"stats"`
	Meta  yamlMeta `yaml:"meta"`
}

type yamlMeta struct {
	Title      string   `yaml:"title"`
	Source     string   `yaml:"source"`
	ManifestID string   `yaml:"manifest_id,omitempty"`
	CreatedAt  string   `yaml:"created_at,omitempty"`
	OK         bool     `yaml:"ok"`
	TotalSize  uint64   `yaml:"total_size"`
	Warnings   []string `yaml:"warnings,omitempty"`
}

// YAMLFormatter formats output as YAML.
// It produces the same structure as JSONFormatter.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	out := yamlOutput{
		Rows:  r.Rows,
		Stats: r.Stats,
		Meta: yamlMeta{
			Title:      r.Title,
			Source:     r.Source,
			ManifestID: r.ManifestID,
			CreatedAt:  r.CreatedAt,
			OK:         r.OK,
			TotalSize:  r.TotalSize(),
			Warnings:   r.Warnings,
		},
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
