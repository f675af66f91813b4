package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/edgestore/pkg/encoding"
	"github.com/haivivi/edgestore/pkg/graph"
	"github.com/haivivi/edgestore/pkg/kv"
)

var (
	edgeScope   string
	edgeSource  string
	edgeType    string
	edgeTarget  string
	edgeVersion int64
	dryRun      bool
)

// mutationView is the printable form of one kv.Mutation.
type mutationView struct {
	Family     string `json:"family"`
	Row        string `json:"row"`
	Column     string `json:"column"`
	RowText    string `json:"row_text"`
	ColumnText string `json:"column_text"`
	Timestamp  int64  `json:"timestamp"`
	Tombstone  bool   `json:"tombstone,omitempty"`
}

type mutationList []mutationView

func (l mutationList) TableHeader() []string {
	return []string{"FAMILY", "ROW", "COLUMN", "TS", "TOMBSTONE"}
}

func (l mutationList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, m := range l {
		rows[i] = []string{m.Family, m.RowText, m.ColumnText, strconv.FormatInt(m.Timestamp, 10), strconv.FormatBool(m.Tombstone)}
	}
	return rows
}

func viewBatch(b *kv.Batch) mutationList {
	muts := b.Mutations()
	out := make(mutationList, len(muts))
	for i, m := range muts {
		row, col := encoding.Key(m.Row), encoding.Key(m.Column)
		out[i] = mutationView{
			Family:     m.Family,
			Row:        row.String(),
			Column:     col.String(),
			RowText:    row.Printable(),
			ColumnText: col.Printable(),
			Timestamp:  m.Timestamp,
			Tombstone:  m.Tombstone,
		}
	}
	return out
}

type writeResult struct {
	Action    string      `json:"action"`
	Scope     graph.Scope `json:"scope"`
	Edge      graph.Edge  `json:"edge"`
	Mutations int         `json:"mutations"`
}

// edgeFromFlags parses --source, --type, --target and --version.
func edgeFromFlags() (graph.Edge, error) {
	src, err := graph.ParseNodeID(edgeSource)
	if err != nil {
		return graph.Edge{}, err
	}
	tgt, err := graph.ParseNodeID(edgeTarget)
	if err != nil {
		return graph.Edge{}, err
	}
	return graph.Edge{Source: src, Type: edgeType, Target: tgt, Version: edgeVersion}, nil
}

func runMutation(cmd *cobra.Command, action string, build func(*graph.EdgeSerialization, graph.Scope, graph.Edge) (*kv.Batch, error)) error {
	ctx := cmd.Context()
	e, err := edgeFromFlags()
	if err != nil {
		return err
	}
	s, err := openSession(ctx, 0)
	if err != nil {
		return err
	}
	defer s.Close()
	scope, err := s.scope(edgeScope)
	if err != nil {
		return err
	}

	b, err := build(s.edges, scope, e)
	if err != nil {
		return err
	}
	if dryRun {
		return printResult(cmd, viewBatch(b))
	}
	if err := s.apply(ctx, b); err != nil {
		return err
	}
	return printResult(cmd, writeResult{Action: action, Scope: scope, Edge: e, Mutations: b.Len()})
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write one version of an edge",
	Long: `Write one version of an edge to all five index families.

Writing the same edge and version again is a no-op.

Examples:
  edgectl write --source user:u1 --type member --target group:g1 --version 100
  edgectl write --source user:u1 --type member --target group:g1 --version 101 --dry-run -o table`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, "write", (*graph.EdgeSerialization).WriteEdge)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete one version of an edge",
	Long: `Delete one version of an edge from all five index families.

Other versions of the same edge are not affected.

Examples:
  edgectl delete --source user:u1 --type member --target group:g1 --version 100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, "delete", (*graph.EdgeSerialization).DeleteEdge)
	},
}

func init() {
	for _, c := range []*cobra.Command{writeCmd, deleteCmd} {
		f := c.Flags()
		f.StringVar(&edgeScope, "scope", "", "tenant scope (default: the context's scope)")
		f.StringVar(&edgeSource, "source", "", "source node as type:id")
		f.StringVar(&edgeType, "type", "", "edge type")
		f.StringVar(&edgeTarget, "target", "", "target node as type:id")
		f.Int64Var(&edgeVersion, "version", 0, "edge version")
		f.BoolVar(&dryRun, "dry-run", false, "print the mutations instead of applying them")
		c.MarkFlagRequired("source")
		c.MarkFlagRequired("type")
		c.MarkFlagRequired("target")
		rootCmd.AddCommand(c)
	}
}
