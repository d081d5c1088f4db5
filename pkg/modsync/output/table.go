package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// TSVFormatter formats output as tab-separated values.
type TSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString("STATUS\tSIZE\tNAME\tPATH\tDETAIL\n")
	for _, row := range r.Rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", row.Status, row.Size, row.Name, row.Path, row.Detail)
	}
	return nil
}

func init() {
	Register("tsv", func() Formatter {
		return &TSVFormatter{}
	})
}

// Ensure TSVFormatter implements Formatter.
var _ Formatter = (*TSVFormatter)(nil)

// CSVFormatter formats output as comma-separated values with proper quoting.
type CSVFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"STATUS", "SIZE", "NAME", "PATH", "DETAIL"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{row.Status, strconv.FormatUint(row.Size, 10), row.Name, row.Path, row.Detail}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

// Ensure CSVFormatter implements Formatter.
var _ Formatter = (*CSVFormatter)(nil)

// MarkdownFormatter formats output as a GitHub-flavored Markdown table.
type MarkdownFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MarkdownFormatter) Format(w *bytes.Buffer, r *Result) error {
	fmt.Fprintf(w, "### %s\n\n", escapeMarkdownPipe(r.Title))
	w.WriteString("| STATUS | SIZE | NAME | DETAIL |\n")
	w.WriteString("|--------|------|------|--------|\n")

	for _, row := range r.Rows {
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			escapeMarkdownPipe(row.Status),
			escapeMarkdownPipe(row.SizeHuman),
			escapeMarkdownPipe(row.Name),
			escapeMarkdownPipe(row.Detail))
	}

	if len(r.Stats) > 0 {
		w.WriteString("\n")
		for _, s := range r.Stats {
			fmt.Fprintf(w, "- **%s**: %d\n", s.Label, s.Value)
		}
	}
	return nil
}

// escapeMarkdownPipe escapes pipe characters in a string for Markdown tables.
func escapeMarkdownPipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	Register("markdown", func() Formatter {
		return &MarkdownFormatter{}
	})
}

// Ensure MarkdownFormatter implements Formatter.
var _ Formatter = (*MarkdownFormatter)(nil)
