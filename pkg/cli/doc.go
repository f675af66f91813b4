// Package cli provides output helpers for the edgectl command-line tool.
//
// Results can be written as YAML (the default), JSON, a styled table or raw
// bytes, optionally after filtering them through a jq expression:
//
//	p := cli.Printer{Format: cli.FormatJSON, Query: ".[].target"}
//	err := p.Print(os.Stdout, edges)
package cli
