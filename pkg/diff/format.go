package diff

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter renders a SchemaDiff report. When breakingOnly is set, only the
// breaking-change section is emitted.
type Formatter interface {
	Format(w io.Writer, d *SchemaDiff, breakingOnly bool) error
}

// NewFormatter returns the formatter for a format name: "text", "json" or
// "markdown".
func NewFormatter(format string) (Formatter, error) {
	switch format {
	case "text", "":
		return TextFormatter{}, nil
	case "json":
		return JSONFormatter{}, nil
	case "markdown", "md":
		return MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q (want text, json or markdown)", format)
	}
}

// TextFormatter renders a plain-text report for terminals.
type TextFormatter struct{}

func (TextFormatter) Format(w io.Writer, d *SchemaDiff, breakingOnly bool) error {
	fmt.Fprintf(w, "Schema diff: %s -> %s\n", d.OldVersion, d.NewVersion)

	if !breakingOnly {
		if !d.HasChanges() {
			fmt.Fprintln(w, "No changes.")
			return nil
		}
		for _, m := range d.Messages {
			writeMessageText(w, m, 0)
		}
		for _, e := range d.Enums {
			writeEnumText(w, e)
		}
		fmt.Fprintln(w)
	}

	if len(d.Breaking) == 0 {
		fmt.Fprintln(w, "No breaking changes.")
	} else {
		fmt.Fprintf(w, "Breaking changes (%d errors, %d warnings):\n",
			d.Summary.BreakingErrors, d.Summary.BreakingWarnings)
		for _, b := range d.Breaking {
			fmt.Fprintf(w, "  %s\n", b)
		}
	}
	return nil
}

func writeMessageText(w io.Writer, m *MessageDiff, depth int) {
	indent := strings.Repeat("  ", depth)
	switch m.Status {
	case Added:
		fmt.Fprintf(w, "%s+ message %s\n", indent, m.Name)
		return
	case Removed:
		fmt.Fprintf(w, "%s- message %s\n", indent, m.Name)
		return
	}
	fmt.Fprintf(w, "%s~ message %s\n", indent, m.Name)
	for _, c := range m.FieldChanges {
		fmt.Fprintf(w, "%s    %s\n", indent, c.Detail)
	}
	for _, n := range m.Nested {
		writeMessageText(w, n, depth+1)
	}
}

func writeEnumText(w io.Writer, e *EnumDiff) {
	switch e.Status {
	case Added:
		fmt.Fprintf(w, "+ enum %s\n", e.Name)
		return
	case Removed:
		fmt.Fprintf(w, "- enum %s\n", e.Name)
		return
	}
	fmt.Fprintf(w, "~ enum %s\n", e.Name)
	for _, v := range e.AddedValues {
		fmt.Fprintf(w, "    value %s = %d added\n", v.Name, v.Number)
	}
	for _, v := range e.RemovedValues {
		fmt.Fprintf(w, "    value %s = %d removed\n", v.Name, v.Number)
	}
	for _, v := range e.RenumberedValues {
		fmt.Fprintf(w, "    value %s renumbered %d -> %d\n", v.Name, v.OldNumber, v.NewNumber)
	}
}

// JSONFormatter renders the diff as indented JSON for tooling.
type JSONFormatter struct{}

func (JSONFormatter) Format(w io.Writer, d *SchemaDiff, breakingOnly bool) error {
	var payload any = d
	if breakingOnly {
		payload = struct {
			OldVersion string           `json:"oldVersion"`
			NewVersion string           `json:"newVersion"`
			Breaking   []BreakingChange `json:"breaking"`
			Summary    Summary          `json:"summary"`
		}{d.OldVersion, d.NewVersion, d.Breaking, d.Summary}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// MarkdownFormatter renders the diff as a markdown document for review
// comments and changelogs.
type MarkdownFormatter struct{}

func (MarkdownFormatter) Format(w io.Writer, d *SchemaDiff, breakingOnly bool) error {
	fmt.Fprintf(w, "# Schema diff: %s → %s\n\n", d.OldVersion, d.NewVersion)

	if !breakingOnly {
		if !d.HasChanges() {
			fmt.Fprintln(w, "No changes.")
			return nil
		}
		if len(d.Messages) > 0 {
			fmt.Fprintln(w, "## Messages")
			fmt.Fprintln(w)
			for _, m := range d.Messages {
				writeMessageMarkdown(w, m, "")
			}
			fmt.Fprintln(w)
		}
		if len(d.Enums) > 0 {
			fmt.Fprintln(w, "## Enums")
			fmt.Fprintln(w)
			for _, e := range d.Enums {
				writeEnumMarkdown(w, e)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, "## Breaking changes")
	fmt.Fprintln(w)
	if len(d.Breaking) == 0 {
		fmt.Fprintln(w, "None.")
		return nil
	}
	fmt.Fprintln(w, "| Severity | Path | Change |")
	fmt.Fprintln(w, "|---|---|---|")
	for _, b := range d.Breaking {
		fmt.Fprintf(w, "| %s | `%s` | %s |\n", b.Severity, b.Path, b.Message)
	}
	return nil
}

func writeMessageMarkdown(w io.Writer, m *MessageDiff, prefix string) {
	name := prefix + m.Name
	switch m.Status {
	case Added:
		fmt.Fprintf(w, "- **%s**: added\n", name)
		return
	case Removed:
		fmt.Fprintf(w, "- **%s**: removed\n", name)
		return
	}
	fmt.Fprintf(w, "- **%s**: modified\n", name)
	for _, c := range m.FieldChanges {
		fmt.Fprintf(w, "  - %s\n", c.Detail)
	}
	for _, n := range m.Nested {
		writeMessageMarkdown(w, n, name+".")
	}
}

func writeEnumMarkdown(w io.Writer, e *EnumDiff) {
	switch e.Status {
	case Added:
		fmt.Fprintf(w, "- **%s**: added\n", e.Name)
		return
	case Removed:
		fmt.Fprintf(w, "- **%s**: removed\n", e.Name)
		return
	}
	fmt.Fprintf(w, "- **%s**: modified\n", e.Name)
	for _, v := range e.AddedValues {
		fmt.Fprintf(w, "  - value `%s = %d` added\n", v.Name, v.Number)
	}
	for _, v := range e.RemovedValues {
		fmt.Fprintf(w, "  - value `%s = %d` removed\n", v.Name, v.Number)
	}
	for _, v := range e.RenumberedValues {
		fmt.Fprintf(w, "  - value `%s` renumbered %d → %d\n", v.Name, v.OldNumber, v.NewNumber)
	}
}
