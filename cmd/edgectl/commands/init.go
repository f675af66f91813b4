package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/edgestore/cmd/edgectl/internal/config"
	"github.com/haivivi/edgestore/pkg/kv"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Prepare the backing store of a context",
	Long: `Prepare the backing store of the current context (or -c <name>).

  memory    writes an empty snapshot unless one already exists
  badger    creates the data directory
  dynamodb  creates the table and waits until it is active

Running init again is harmless.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := selectedContext()
		if err != nil {
			return err
		}
		storeCfg, err := c.Store()
		if err != nil {
			return err
		}

		if storeCfg.Backend == config.BackendDynamoDB {
			awsCfg, err := loadAWSConfig(ctx, storeCfg)
			if err != nil {
				return err
			}
			if err := kv.CreateDynamoDBTable(ctx, newDynamoDBClient(awsCfg, storeCfg), storeCfg.Table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %q ready for context %q.\n", storeCfg.Table, c.Name)
			return nil
		}

		// Opening a memory or badger session restores or creates its files.
		s, err := openSession(ctx, 0)
		if err != nil {
			return err
		}
		defer s.Close()
		if s.persist != nil {
			if err := s.persist(ctx); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Store ready for context %q.\n", c.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
