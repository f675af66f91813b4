package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/edgestore/pkg/graph"
)

var idCount int

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Node ID helpers",
}

var idNewCmd = &cobra.Command{
	Use:   "new <type>",
	Short: "Generate random node IDs",
	Long: `Generate random node IDs of the given type, printed as type:id.

Examples:
  edgectl id new user
  edgectl id new group -n 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if idCount < 1 {
			return fmt.Errorf("-n must be at least 1")
		}
		for range idCount {
			n := graph.NewNodeID(args[0])
			fmt.Fprintln(cmd.OutOrStdout(), n.String())
		}
		return nil
	},
}

func init() {
	idNewCmd.Flags().IntVarP(&idCount, "count", "n", 1, "number of IDs")
	idCmd.AddCommand(idNewCmd)
	rootCmd.AddCommand(idCmd)
}
