package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/edgestore/pkg/graph"
)

var (
	queryScope        string
	queryType         string
	queryNodeType     string
	queryOther        string
	queryMaxVersion   int64
	queryAfterNode    string
	queryAfterVersion int64
	queryLimit        int
	queryPageSize     int
)

// edgeList is the printable result of a query.
type edgeList []graph.Edge

func (l edgeList) TableHeader() []string {
	return []string{"SOURCE", "TYPE", "TARGET", "VERSION"}
}

func (l edgeList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, e := range l {
		rows[i] = []string{e.Source.String(), e.Type, e.Target.String(), strconv.FormatInt(e.Version, 10)}
	}
	return rows
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Query edges",
	Long: `Query edges of the current context.

Nodes are written as type:id. Results are newest first within each
opposite node. With --max-version, list queries return only the newest
version at or below the bound for each opposite node, and version queries
return every version at or below it.

Resume a listing strictly after a previously printed edge with
--after-node (its opposite node) and --after-version.

Examples:
  edgectl edges from-source user:u1 --type member
  edgectl edges to-target group:g1 --type member --max-version 100 -o table
  edgectl edges from-source-by-target-type user:u1 --type owns --node-type file
  edgectl edges versions-from-source user:u1 --type member --target group:g1
  edgectl edges from-source user:u1 --type member --jq '.[].target.id'`,
}

// maxVersion returns the --max-version ceiling, if the flag was given.
func maxVersion(cmd *cobra.Command) graph.Ceiling {
	if cmd.Flags().Changed("max-version") {
		return graph.AtMost(queryMaxVersion)
	}
	return graph.NoCeiling
}

// runQuery opens a session, runs query and prints up to --limit edges.
func runQuery(cmd *cobra.Command, query func(context.Context, *graph.EdgeSerialization, graph.Scope) (*graph.EdgeIterator, error)) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, queryPageSize)
	if err != nil {
		return err
	}
	defer s.Close()
	scope, err := s.scope(queryScope)
	if err != nil {
		return err
	}

	it, err := query(ctx, s.edges, scope)
	if err != nil {
		return err
	}
	out := edgeList{}
	for e, err := range it.All() {
		if err != nil {
			return err
		}
		out = append(out, e)
		if queryLimit > 0 && len(out) >= queryLimit {
			break
		}
	}
	return printResult(cmd, out)
}

// byTypeSearch builds the search for a list query anchored at args[0].
// fromSource tells which endpoint of the resume edge --after-node names.
func byTypeSearch(cmd *cobra.Command, anchor string, fromSource bool) (graph.SearchByEdgeType, error) {
	node, err := graph.ParseNodeID(anchor)
	if err != nil {
		return graph.SearchByEdgeType{}, err
	}
	search := graph.SearchByEdgeType{Node: node, Type: queryType, MaxVersion: maxVersion(cmd)}

	if queryAfterNode == "" {
		if cmd.Flags().Changed("after-version") {
			return search, fmt.Errorf("--after-version needs --after-node")
		}
		return search, nil
	}
	other, err := graph.ParseNodeID(queryAfterNode)
	if err != nil {
		return search, err
	}
	last := graph.Edge{Source: node, Type: queryType, Target: other, Version: queryAfterVersion}
	if !fromSource {
		last.Source, last.Target = other, node
	}
	search.Last = &last
	return search, nil
}

// edgeSearch builds the search for a version query.
func edgeSearch(cmd *cobra.Command, source, target string) (graph.SearchByEdge, error) {
	src, err := graph.ParseNodeID(source)
	if err != nil {
		return graph.SearchByEdge{}, err
	}
	tgt, err := graph.ParseNodeID(target)
	if err != nil {
		return graph.SearchByEdge{}, err
	}
	search := graph.SearchByEdge{Source: src, Type: queryType, Target: tgt, MaxVersion: maxVersion(cmd)}
	if cmd.Flags().Changed("after-version") {
		search.Last = &graph.Edge{Source: src, Type: queryType, Target: tgt, Version: queryAfterVersion}
	}
	return search, nil
}

var edgesFromSourceCmd = &cobra.Command{
	Use:   "from-source <source>",
	Short: "List edges of a type leaving a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := byTypeSearch(cmd, args[0], true)
		if err != nil {
			return err
		}
		return runQuery(cmd, func(ctx context.Context, es *graph.EdgeSerialization, scope graph.Scope) (*graph.EdgeIterator, error) {
			return es.GetEdgesFromSource(ctx, scope, search)
		})
	},
}

var edgesToTargetCmd = &cobra.Command{
	Use:   "to-target <target>",
	Short: "List edges of a type entering a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := byTypeSearch(cmd, args[0], false)
		if err != nil {
			return err
		}
		return runQuery(cmd, func(ctx context.Context, es *graph.EdgeSerialization, scope graph.Scope) (*graph.EdgeIterator, error) {
			return es.GetEdgesToTarget(ctx, scope, search)
		})
	},
}

var edgesFromSourceByTargetTypeCmd = &cobra.Command{
	Use:   "from-source-by-target-type <source>",
	Short: "List edges of a type leaving a node, restricted to one target type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := byTypeSearch(cmd, args[0], true)
		if err != nil {
			return err
		}
		return runQuery(cmd, func(ctx context.Context, es *graph.EdgeSerialization, scope graph.Scope) (*graph.EdgeIterator, error) {
			return es.GetEdgesFromSourceByTargetType(ctx, scope, graph.SearchByIDType{SearchByEdgeType: search, NodeType: queryNodeType})
		})
	},
}

var edgesToTargetBySourceTypeCmd = &cobra.Command{
	Use:   "to-target-by-source-type <target>",
	Short: "List edges of a type entering a node, restricted to one source type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := byTypeSearch(cmd, args[0], false)
		if err != nil {
			return err
		}
		return runQuery(cmd, func(ctx context.Context, es *graph.EdgeSerialization, scope graph.Scope) (*graph.EdgeIterator, error) {
			return es.GetEdgesToTargetBySourceType(ctx, scope, graph.SearchByIDType{SearchByEdgeType: search, NodeType: queryNodeType})
		})
	},
}

var edgesVersionsFromSourceCmd = &cobra.Command{
	Use:   "versions-from-source <source>",
	Short: "List the versions of one edge, looked up from its source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := edgeSearch(cmd, args[0], queryOther)
		if err != nil {
			return err
		}
		return runQuery(cmd, func(ctx context.Context, es *graph.EdgeSerialization, scope graph.Scope) (*graph.EdgeIterator, error) {
			return es.GetEdgeFromSource(ctx, scope, search)
		})
	},
}

var edgesVersionsToTargetCmd = &cobra.Command{
	Use:   "versions-to-target <target>",
	Short: "List the versions of one edge, looked up from its target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, err := edgeSearch(cmd, queryOther, args[0])
		if err != nil {
			return err
		}
		return runQuery(cmd, func(ctx context.Context, es *graph.EdgeSerialization, scope graph.Scope) (*graph.EdgeIterator, error) {
			return es.GetEdgeToTarget(ctx, scope, search)
		})
	},
}

func init() {
	pf := edgesCmd.PersistentFlags()
	pf.StringVar(&queryScope, "scope", "", "tenant scope (default: the context's scope)")
	pf.StringVar(&queryType, "type", "", "edge type")
	pf.Int64Var(&queryMaxVersion, "max-version", 0, "only versions at or below this bound")
	pf.Int64Var(&queryAfterVersion, "after-version", 0, "resume after the edge with this version")
	pf.IntVar(&queryLimit, "limit", 0, "stop after this many edges (0: no limit)")
	pf.IntVar(&queryPageSize, "page-size", 0, "columns fetched per store round-trip (default: the context's page size)")
	edgesCmd.MarkPersistentFlagRequired("type")

	for _, c := range []*cobra.Command{edgesFromSourceCmd, edgesToTargetCmd, edgesFromSourceByTargetTypeCmd, edgesToTargetBySourceTypeCmd} {
		c.Flags().StringVar(&queryAfterNode, "after-node", "", "resume after the edge to or from this node (type:id)")
		edgesCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{edgesFromSourceByTargetTypeCmd, edgesToTargetBySourceTypeCmd} {
		c.Flags().StringVar(&queryNodeType, "node-type", "", "type of the opposite node")
		c.MarkFlagRequired("node-type")
	}

	edgesVersionsFromSourceCmd.Flags().StringVar(&queryOther, "target", "", "target node (type:id)")
	edgesVersionsFromSourceCmd.MarkFlagRequired("target")
	edgesVersionsToTargetCmd.Flags().StringVar(&queryOther, "source", "", "source node (type:id)")
	edgesVersionsToTargetCmd.MarkFlagRequired("source")
	edgesCmd.AddCommand(edgesVersionsFromSourceCmd, edgesVersionsToTargetCmd)

	rootCmd.AddCommand(edgesCmd)
}
