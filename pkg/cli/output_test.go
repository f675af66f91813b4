package cli_test

import (
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haivivi/edgestore/pkg/cli"
)

type row struct {
	Name  string `json:"name" yaml:"name"`
	Count int64  `json:"count" yaml:"count"`
}

type rows []row

func (r rows) TableHeader() []string { return []string{"NAME", "COUNT"} }

func (r rows) TableRows() [][]string {
	out := make([][]string, 0, len(r))
	for _, x := range r {
		out = append(out, []string{x.Name, strconv.FormatInt(x.Count, 10)})
	}
	return out
}

var sample = rows{{"alpha", 1}, {"beta", 9007199254740993}}

func render(t *testing.T, p cli.Printer, v any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, p.Print(&buf, v))
	return buf.String()
}

func TestPrintJSON(t *testing.T) {
	out := render(t, cli.Printer{Format: cli.FormatJSON}, sample)

	var got []row
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []row(sample), got)
	assert.Contains(t, out, "\n  {")
}

func TestPrintYAMLDefault(t *testing.T) {
	assert.Contains(t, render(t, cli.Printer{}, map[string]any{"name": "test"}), "name: test")
}

func TestPrintTable(t *testing.T) {
	out := render(t, cli.Printer{Format: cli.FormatTable}, sample)
	for _, want := range []string{"NAME", "COUNT", "alpha", "beta", "9007199254740993"} {
		assert.Contains(t, out, want)
	}

	plain := cli.Theme{}
	assert.Contains(t, render(t, cli.Printer{Format: cli.FormatTable, Theme: &plain}, sample), "alpha")
}

func TestPrintTableFallsBackToYAML(t *testing.T) {
	assert.Equal(t, "count: 1\n", render(t, cli.Printer{Format: cli.FormatTable}, map[string]int{"count": 1}))
}

func TestPrintRaw(t *testing.T) {
	p := cli.Printer{Format: cli.FormatRaw}
	assert.Equal(t, "bytes", render(t, p, []byte("bytes")))
	assert.Equal(t, "string", render(t, p, "string"))
	assert.Equal(t, "count: 1\n", render(t, p, map[string]int{"count": 1}))
}

func TestPrintUnsupportedFormat(t *testing.T) {
	err := cli.Printer{Format: "xml"}.Print(&bytes.Buffer{}, sample)
	assert.Error(t, err)
}

func TestPrintQuery(t *testing.T) {
	p := cli.Printer{Format: cli.FormatJSON, Query: `[.[] | select(.count > 1) | .count]`}
	assert.JSONEq(t, `[9007199254740993]`, render(t, p, sample))

	err := cli.Printer{Query: ".["}.Print(&bytes.Buffer{}, sample)
	assert.Error(t, err)
}

func TestRunQuery(t *testing.T) {
	v, err := cli.RunQuery(".[0].name", sample)
	require.NoError(t, err)
	assert.Equal(t, "alpha", v)

	v, err = cli.RunQuery(".[].name", sample)
	require.NoError(t, err)
	assert.Equal(t, []any{"alpha", "beta"}, v)

	v, err = cli.RunQuery(".[] | select(.name == \"none\")", sample)
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	v, err = cli.RunQuery(".[1].count", sample)
	require.NoError(t, err)
	assert.Equal(t, 9007199254740993, v)

	_, err = cli.RunQuery(".[", sample)
	assert.Error(t, err)
	_, err = cli.RunQuery(`error("boom")`, sample)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]cli.Format{
		"":      cli.FormatYAML,
		"yaml":  cli.FormatYAML,
		"json":  cli.FormatJSON,
		"table": cli.FormatTable,
		"raw":   cli.FormatRaw,
	} {
		got, err := cli.ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := cli.ParseFormat("csv")
	assert.Error(t, err)
}
