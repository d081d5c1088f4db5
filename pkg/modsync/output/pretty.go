package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	title := TitleStyle.Render(r.Title)
	if r.OK {
		title += "  " + SuccessStyle.Render("ok")
	} else {
		title += "  " + ErrorStyle.Render("problems found")
	}
	lines = append(lines, title)

	if r.Source != "" {
		lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render("Source:"), ValueStyle.Render(r.Source)))
	}
	if r.ManifestID != "" {
		lines = append(lines, fmt.Sprintf("%s %s  %s %s",
			LabelStyle.Render("Manifest:"), ValueStyle.Render(r.ManifestID),
			LabelStyle.Render("Created:"), MutedStyle.Render(r.CreatedAt)))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Rows) == 0 {
		return MutedStyle.Render("  Nothing to report") + "\n"
	}

	statusWidth, sizeWidth, nameWidth := len("STATUS"), 8, len("NAME")
	for _, row := range r.Rows {
		statusWidth = max(statusWidth, len(row.Status))
		sizeWidth = max(sizeWidth, len(row.SizeHuman))
		nameWidth = max(nameWidth, len(row.Name))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("STATUS", statusWidth)),
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padRight("NAME", nameWidth)),
		TableHeaderStyle.Render("DETAIL"))

	for _, row := range r.Rows {
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			StatusStyle(row.Status).Render(padRight(row.Status, statusWidth)),
			SizeStyle.Render(padLeft(row.SizeHuman, sizeWidth)),
			ValueStyle.Render(padRight(row.Name, nameWidth)),
			MutedStyle.Render(row.Detail))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := make([]string, 0, len(r.Stats)+1)
	for _, s := range r.Stats {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render(s.Label+":"), ValueStyle.Render(fmt.Sprintf("%d", s.Value))))
	}
	parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(humanize.IBytes(r.TotalSize()))))
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

// padLeft pads a string with spaces on the left to achieve the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
