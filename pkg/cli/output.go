package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// Format selects how a Printer renders a result.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTable Format = "table" // falls back to YAML for values that are not a Table
	FormatRaw   Format = "raw"   // strings and byte slices verbatim
)

// ParseFormat validates a --output flag value. The empty string means YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatTable, FormatRaw:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Printer renders command results.
type Printer struct {
	Format Format

	// Query is a jq expression applied to the JSON form of a result before
	// it is rendered. Empty means no filtering.
	Query string

	// Theme styles table output. The zero value uses DefaultTheme.
	Theme *Theme
}

// Print renders v to w.
func (p Printer) Print(w io.Writer, v any) error {
	if p.Query != "" {
		filtered, err := RunQuery(p.Query, v)
		if err != nil {
			return err
		}
		v = filtered
	}

	switch p.Format {
	case "", FormatYAML:
		return writeYAML(w, v)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatTable:
		t, ok := v.(Table)
		if !ok {
			return writeYAML(w, v)
		}
		theme := DefaultTheme
		if p.Theme != nil {
			theme = *p.Theme
		}
		return outputTable(w, t, theme)
	case FormatRaw:
		switch b := v.(type) {
		case []byte:
			_, err := w.Write(b)
			return err
		case string:
			_, err := io.WriteString(w, b)
			return err
		}
		return writeYAML(w, v)
	}
	return fmt.Errorf("unsupported output format: %s", p.Format)
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}
