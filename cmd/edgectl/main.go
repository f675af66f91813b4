// Package main is the entry point for the edgectl CLI.
//
// Usage:
//
//	edgectl [flags] <command> [subcommand] [args]
//
// Commands:
//
//	config   - Contexts and store configuration
//	init     - Prepare the configured store (table, directory, snapshot)
//	write    - Write one edge version
//	delete   - Delete one edge version
//	edges    - Query edges by source, target, node type or exact edge
//	id       - Generate node ids
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/edgestore/cmd/edgectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
