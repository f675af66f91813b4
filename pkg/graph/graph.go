// Package graph persists directed, typed, versioned edges between nodes of
// a multi-tenant property graph.
//
// One logical edge is written to five row families of a kv.Store so that it
// can be enumerated from either endpoint, optionally restricted to the
// opposite endpoint's node type, and so that the full version history of a
// single edge can be read back:
//
//	edges_src       scope, source, edge type               → target, version
//	edges_tgt       scope, target, edge type               → source, version
//	edges_src_type  scope, source, edge type, target type  → target, version
//	edges_tgt_type  scope, target, edge type, source type  → source, version
//	edge_versions   scope, source, edge type, target       → version
//
// Within a row, columns sort by opposite node ascending and then by version
// descending, so the newest version of each edge comes first.
//
// Writes and deletes are returned as uncommitted kv.Batch values. The store
// applies the five mutations without cross-row atomicity, so a reader may
// briefly observe an edge in some families and not others.
package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Scope is the tenant namespace every key is prefixed with.
type Scope string

// NodeID identifies a node by an opaque id and its node-type tag. Two NodeIDs
// are equal iff both fields match.
type NodeID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// NewNodeID returns a NodeID of the given type with a random UUID.
func NewNodeID(nodeType string) NodeID {
	return NodeID{ID: uuid.New().String(), Type: nodeType}
}

// ParseNodeID parses the "type:id" form produced by NodeID.String. Only the
// first colon separates the type, so ids may contain colons.
func ParseNodeID(s string) (NodeID, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return NodeID{}, &ValidationError{Field: "node", Reason: fmt.Sprintf("%q is not of the form type:id", s)}
	}
	return NodeID{ID: id, Type: typ}, nil
}

func (n NodeID) String() string {
	return n.Type + ":" + n.ID
}

// Edge is one version of a directed, typed relationship. Edges are values;
// an update is a new Edge with a higher Version.
type Edge struct {
	Source  NodeID `json:"source"`
	Type    string `json:"type"`
	Target  NodeID `json:"target"`
	Version int64  `json:"version"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s@%d]-> %s", e.Source, e.Type, e.Version, e.Target)
}

// SameEdge reports whether e and o are versions of the same logical edge.
func (e Edge) SameEdge(o Edge) bool {
	return e.Source == o.Source && e.Type == o.Type && e.Target == o.Target
}

// Ceiling is an optional upper bound on edge versions. The zero value means
// no bound.
type Ceiling struct {
	max int64
	set bool
}

// NoCeiling places no bound on versions.
var NoCeiling = Ceiling{}

// AtMost returns a ceiling that admits versions <= v.
func AtMost(v int64) Ceiling {
	return Ceiling{max: v, set: true}
}

// Max returns the bound and whether one is set.
func (c Ceiling) Max() (int64, bool) {
	return c.max, c.set
}

// Admits reports whether version v is at or below the ceiling.
func (c Ceiling) Admits(v int64) bool {
	return !c.set || v <= c.max
}

func (c Ceiling) String() string {
	if !c.set {
		return "none"
	}
	return fmt.Sprintf("<=%d", c.max)
}

// SearchByEdge selects versions of one specific edge.
type SearchByEdge struct {
	Source NodeID
	Type   string
	Target NodeID

	// MaxVersion bounds the versions returned. Every version at or below the
	// bound is returned, newest first.
	MaxVersion Ceiling

	// Last resumes a previous search strictly after this edge.
	Last *Edge
}

// SearchByEdgeType selects the edges of one type from or to one node.
type SearchByEdgeType struct {
	// Node is the source for "from source" searches and the target for
	// "to target" searches.
	Node NodeID
	Type string

	// MaxVersion, when set, limits the result to the newest version at or
	// below the bound for each opposite node.
	MaxVersion Ceiling

	// Last resumes a previous search strictly after this edge.
	Last *Edge
}

// SearchByIDType is SearchByEdgeType restricted to opposite nodes of one
// node type.
type SearchByIDType struct {
	SearchByEdgeType

	// NodeType is the type tag the opposite endpoint must carry.
	NodeType string
}
