package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/edgestore/cmd/edgectl/internal/build"
	"github.com/haivivi/edgestore/cmd/edgectl/internal/config"
	"github.com/haivivi/edgestore/pkg/cli"
	"github.com/haivivi/edgestore/pkg/telemetry"
)

var (
	// Global flags
	verbose       bool
	contextName   string
	formatOutput  string
	jqQuery       string
	traceEndpoint string

	// Global configuration (loaded at init time)
	globalConfig *config.Config

	shutdownTracing func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "edgectl",
	Short: "Inspect and edit a versioned edge store",
	Long: `edgectl - write, delete and query directed, typed, versioned edges.

Every edge is stored in five index rows so it can be listed from its source,
from its target, filtered by the opposite node's type, or read back as the
version history of one edge.

Configuration is stored in the OS config directory (or $EDGECTL_CONFIG_DIR):
  macOS:   ~/Library/Application Support/edgectl/
  Linux:   ~/.config/edgectl/
  Windows: %AppData%/edgectl/

Examples:
  # Create a context backed by a local snapshot file
  edgectl config add-context local --backend memory --snapshot edges.snap --scope acme
  edgectl config use-context local

  # Write an edge and list it
  edgectl write --source user:u1 --type member --target group:g1 --version 100
  edgectl edges from-source user:u1 --type member -o table`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

		if _, err := cli.ParseFormat(formatOutput); err != nil {
			return err
		}

		shutdown, err := telemetry.Init(cmd.Context(), "edgectl", build.Version, traceEndpoint)
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTracing == nil {
			return nil
		}
		err := shutdownTracing(context.WithoutCancel(cmd.Context()))
		shutdownTracing = nil
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&contextName, "context", "c", "", "context to use (default: current context)")
	pf.StringVarP(&formatOutput, "output", "o", "yaml", "output format: yaml, json, table or raw")
	pf.StringVar(&jqQuery, "jq", "", "jq expression applied to the result before printing")
	pf.StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP/HTTP endpoint for traces (default: $OTEL_EXPORTER_OTLP_ENDPOINT)")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// printResult writes v to the command's output in the selected format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Printer{Format: format, Query: jqQuery}.Print(cmd.OutOrStdout(), v)
}
