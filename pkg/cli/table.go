package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is implemented by results that can be rendered with FormatTable.
type Table interface {
	TableHeader() []string
	TableRows() [][]string
}

// Theme defines the colors used for table output.
type Theme struct {
	Primary lipgloss.Color // Header and border color
	Dim     lipgloss.Color // Cell color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

func outputTable(w io.Writer, t Table, theme Theme) error {
	styles := NewStyles(theme)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		}).
		Headers(t.TableHeader()...).
		Rows(t.TableRows()...)
	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
