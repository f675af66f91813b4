package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/edgestore/cmd/edgectl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage contexts",
	Long: `Manage contexts.

A context is a named directory holding store.yaml, which selects the
backend (memory, badger or dynamodb) and its settings.

Examples:
  edgectl config add-context dev --backend memory --snapshot edges.snap --scope acme
  edgectl config add-context prod --backend dynamodb --table edges --region us-east-1
  edgectl config use-context dev
  edgectl config list-contexts
  edgectl config set page_size 500
  edgectl config show -c prod`,
}

var (
	addBackend        string
	addScope          string
	addPageSize       int
	addSnapshot       string
	addDir            string
	addTable          string
	addRegion         string
	addEndpoint       string
	addConsistentRead bool
)

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]
		store := &config.Store{
			Backend:        config.Backend(addBackend),
			Scope:          addScope,
			PageSize:       addPageSize,
			Snapshot:       addSnapshot,
			Dir:            addDir,
			Table:          addTable,
			Region:         addRegion,
			Endpoint:       addEndpoint,
			ConsistentRead: addConsistentRead,
		}
		c, err := cfg.Create(name, store)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Context %q created.\n", c.Name)
		if c.Current {
			fmt.Fprintf(out, "Switched to context %q.\n", c.Name)
		}
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Long: `Delete a context directory.

Only the configuration is removed. Badger directories outside the context
directory, DynamoDB tables and S3 snapshots are left in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.Use(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		contexts, err := cfg.Contexts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(contexts) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: edgectl config add-context <name> --backend memory")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tBACKEND\tSCOPE")
		for _, c := range contexts {
			current := ""
			if c.Current {
				current = "*"
			}
			backend, scope := "?", ""
			if s, err := c.Store(); err == nil {
				backend, scope = string(s.Backend), s.Scope
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, c.Name, backend, scope)
		}
		return w.Flush()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the store configuration of a context",
	Long: `Print the store configuration of the current context (or -c <name>).

Relative paths are shown resolved against the context directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := selectedContext()
		if err != nil {
			return err
		}
		store, err := c.Store()
		if err != nil {
			return err
		}
		return printResult(cmd, store)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a store config value",
	Long: `Set one key of the current context's store.yaml (or -c <name>).

The value is converted to the key's type and the whole file is validated
before it is written.

Examples:
  edgectl config set scope acme
  edgectl config set page_size 500
  edgectl config set consistent_read true -c prod`,
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		keys, _ := config.StoreKeys()
		return keys, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := selectedContext()
		if err != nil {
			return err
		}
		if _, err := config.SetStoreValue(c.Dir, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s in context %q.\n", args[0], c.Name)
		return nil
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.StringVar(&addBackend, "backend", string(config.BackendMemory), "store backend: memory, badger or dynamodb")
	f.StringVar(&addScope, "scope", "", "default tenant scope")
	f.IntVar(&addPageSize, "page-size", 0, "columns fetched per store round-trip (default 100)")
	f.StringVar(&addSnapshot, "snapshot", "", "memory backend snapshot (path or s3://bucket/key)")
	f.StringVar(&addDir, "dir", "", "badger data directory")
	f.StringVar(&addTable, "table", "", "dynamodb table name")
	f.StringVar(&addRegion, "region", "", "AWS region")
	f.StringVar(&addEndpoint, "endpoint", "", "AWS endpoint override")
	f.BoolVar(&addConsistentRead, "consistent-read", false, "use strongly consistent DynamoDB reads")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configCurrentContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
