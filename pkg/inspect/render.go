package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format selects how Render writes a report.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, r)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderText(w io.Writer, r *Report) error {
	fmt.Fprintf(w, "%s: %d bytes, %d tags", r.Kind, r.Size, len(r.Tags))
	if r.Arch != "" {
		fmt.Fprintf(w, ", arch %s", r.Arch)
	}
	if r.Kind == KindHeader {
		fmt.Fprintf(w, ", at offset %#x", r.Offset)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tTYPE\tNAME\tSIZE\tDETAIL")
	for _, t := range r.Tags {
		name := t.Name
		if t.Flags != "" {
			name += " (" + t.Flags + ")"
		}
		fmt.Fprintf(tw, "%#06x\t%d\t%s\t%d\t%s\n", t.Offset, t.Type, name, t.Size, detail(t))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

func detail(t Tag) string {
	if t.Error != "" {
		return "error: " + t.Error
	}
	if t.Fields == nil {
		return ""
	}
	b, err := json.Marshal(t.Fields)
	if err != nil {
		return fmt.Sprintf("%+v", t.Fields)
	}
	return string(b)
}
