package graph

import (
	"errors"
	"fmt"

	"github.com/haivivi/edgestore/pkg/encoding"
)

// Family names one physical row family. The value is the family name used
// in the kv.Store.
type Family string

// Row families.
const (
	// FamilyBySource rows hold every edge of one type leaving a node.
	FamilyBySource Family = "edges_src"

	// FamilyByTarget rows hold every edge of one type entering a node.
	FamilyByTarget Family = "edges_tgt"

	// FamilyBySourceTargetType is FamilyBySource split by target node type.
	FamilyBySourceTargetType Family = "edges_src_type"

	// FamilyByTargetSourceType is FamilyByTarget split by source node type.
	FamilyByTargetSourceType Family = "edges_tgt_type"

	// FamilyVersions rows hold the versions of a single edge.
	FamilyVersions Family = "edge_versions"
)

// Families lists the row families in the order EncodeIndexKeys returns
// their keys.
var Families = [5]Family{
	FamilyBySource,
	FamilyByTarget,
	FamilyBySourceTargetType,
	FamilyByTargetSourceType,
	FamilyVersions,
}

// layoutVersion is the first byte of every row key. Readers reject rows
// written with a different layout.
const layoutVersion byte = 0x01

// Key layout. Segments are raw bytes closed by encoding.Terminator, and v'
// is the version encoded by encoding.AppendVersionDescending.
//
//	family          row                                                   column
//	edges_src       01 scope src.id src.type type                         tgt.id tgt.type v'
//	edges_tgt       01 scope tgt.id tgt.type type                         src.id src.type v'
//	edges_src_type  01 scope src.id src.type type tgt.type                tgt.id tgt.type v'
//	edges_tgt_type  01 scope tgt.id tgt.type type src.type                src.id src.type v'
//	edge_versions   01 scope src.id src.type type tgt.id tgt.type         v'

// IndexKey is the physical address of one projection of an edge.
type IndexKey struct {
	Family Family
	Row    []byte
	Column []byte
}

// EncodeIndexKeys returns the five keys edge e occupies under scope, in
// Families order. The encoding depends only on its inputs.
func EncodeIndexKeys(scope Scope, e Edge) ([5]IndexKey, error) {
	if err := validateScope(scope); err != nil {
		return [5]IndexKey{}, err
	}
	if err := validateEdge(e); err != nil {
		return [5]IndexKey{}, err
	}

	srcCol, err := nodeColumn(e.Target, e.Version)
	if err != nil {
		return [5]IndexKey{}, err
	}
	tgtCol, err := nodeColumn(e.Source, e.Version)
	if err != nil {
		return [5]IndexKey{}, err
	}
	verCol, err := versionColumn(e.Version)
	if err != nil {
		return [5]IndexKey{}, err
	}

	return [5]IndexKey{
		{FamilyBySource, anchorRow(scope, e.Source, e.Type), srcCol},
		{FamilyByTarget, anchorRow(scope, e.Target, e.Type), tgtCol},
		{FamilyBySourceTargetType, anchorRow(scope, e.Source, e.Type, e.Target.Type), srcCol},
		{FamilyByTargetSourceType, anchorRow(scope, e.Target, e.Type, e.Source.Type), tgtCol},
		{FamilyVersions, versionRow(scope, e.Source, e.Type, e.Target), verCol},
	}, nil
}

// anchorRow encodes a row keyed by one endpoint, optionally followed by
// further segments.
func anchorRow(scope Scope, anchor NodeID, edgeType string, extra ...string) []byte {
	n := 1 + encoding.SegmentsLen(string(scope), anchor.ID, anchor.Type, edgeType) + encoding.SegmentsLen(extra...)
	b := make([]byte, 0, n)
	b = append(b, layoutVersion)
	b = encoding.AppendSegment(b, string(scope))
	b = encoding.AppendSegment(b, anchor.ID)
	b = encoding.AppendSegment(b, anchor.Type)
	b = encoding.AppendSegment(b, edgeType)
	for _, s := range extra {
		b = encoding.AppendSegment(b, s)
	}
	return b
}

func versionRow(scope Scope, src NodeID, edgeType string, tgt NodeID) []byte {
	return anchorRow(scope, src, edgeType, tgt.ID, tgt.Type)
}

func nodeColumn(opp NodeID, version int64) ([]byte, error) {
	b := make([]byte, 0, encoding.SegmentsLen(opp.ID, opp.Type)+encoding.VersionWidth)
	b = encoding.AppendSegment(b, opp.ID)
	b = encoding.AppendSegment(b, opp.Type)
	return encoding.AppendVersionDescending(b, version)
}

func versionColumn(version int64) ([]byte, error) {
	return encoding.AppendVersionDescending(make([]byte, 0, encoding.VersionWidth), version)
}

// columnFor returns the column e occupies in family f.
func columnFor(f Family, e Edge) ([]byte, error) {
	switch f {
	case FamilyBySource, FamilyBySourceTargetType:
		return nodeColumn(e.Target, e.Version)
	case FamilyByTarget, FamilyByTargetSourceType:
		return nodeColumn(e.Source, e.Version)
	default:
		return versionColumn(e.Version)
	}
}

// DecodeColumn reverses EncodeIndexKeys for one family: it returns the edge
// stored at (row, column). A key that does not match the family's layout
// yields a *DecodeError.
func DecodeColumn(f Family, row, column []byte) (Edge, error) {
	fail := func(reason string, err error) (Edge, error) {
		return Edge{}, &DecodeError{Family: f, Reason: reason, Err: err}
	}

	if len(row) == 0 {
		return fail("empty row key", nil)
	}
	if row[0] != layoutVersion {
		return fail(fmt.Sprintf("row layout version %d, want %d", row[0], layoutVersion), nil)
	}

	var extra int
	switch f {
	case FamilyBySource, FamilyByTarget:
	case FamilyBySourceTargetType, FamilyByTargetSourceType:
		extra = 1
	case FamilyVersions:
		extra = 2
	default:
		return fail("unknown family", nil)
	}

	// scope, anchor id, anchor type, edge type, then the family's extras.
	segs, rest, err := readSegments(row[1:], 4+extra)
	if err != nil {
		return fail("row", err)
	}
	if len(rest) != 0 {
		return fail(fmt.Sprintf("row has %d trailing bytes", len(rest)), nil)
	}
	anchor := NodeID{ID: segs[1], Type: segs[2]}
	e := Edge{Type: segs[3]}

	if f == FamilyVersions {
		rest, v, err := encoding.DecodeVersionDescending(column)
		if err != nil {
			return fail("column", err)
		}
		if len(rest) != 0 {
			return fail(fmt.Sprintf("column has %d trailing bytes", len(rest)), nil)
		}
		e.Source = anchor
		e.Target = NodeID{ID: segs[4], Type: segs[5]}
		e.Version = v
		return e, nil
	}

	cols, rest, err := readSegments(column, 2)
	if err != nil {
		return fail("column", err)
	}
	rest, v, err := encoding.DecodeVersionDescending(rest)
	if err != nil {
		return fail("column", err)
	}
	if len(rest) != 0 {
		return fail(fmt.Sprintf("column has %d trailing bytes", len(rest)), nil)
	}
	opp := NodeID{ID: cols[0], Type: cols[1]}
	if extra == 1 && opp.Type != segs[4] {
		return fail(fmt.Sprintf("column node type %q in row for node type %q", opp.Type, segs[4]), nil)
	}

	e.Version = v
	switch f {
	case FamilyBySource, FamilyBySourceTargetType:
		e.Source, e.Target = anchor, opp
	default:
		e.Source, e.Target = opp, anchor
	}
	return e, nil
}

var errEmptySegment = errors.New("empty segment")

// readSegments reads n non-empty segments from b.
func readSegments(b []byte, n int) ([]string, []byte, error) {
	segs := make([]string, n)
	for i := range segs {
		var err error
		b, segs[i], err = encoding.DecodeSegment(b)
		if err != nil {
			return nil, nil, err
		}
		if segs[i] == "" {
			return nil, nil, fmt.Errorf("segment %d: %w", i, errEmptySegment)
		}
	}
	return segs, b, nil
}

// --- validation ---

func validateSegment(field, s string) error {
	if s == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if err := encoding.CheckSegment(s); err != nil {
		return &ValidationError{Field: field, Reason: "must not contain byte 0x00"}
	}
	return nil
}

func validateScope(scope Scope) error {
	return validateSegment("scope", string(scope))
}

func validateNode(field string, n NodeID) error {
	if err := validateSegment(field+".id", n.ID); err != nil {
		return err
	}
	return validateSegment(field+".type", n.Type)
}

func validateVersion(field string, v int64) error {
	if v < 0 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%d is negative", v)}
	}
	return nil
}

func validateEdge(e Edge) error {
	if err := validateNode("source", e.Source); err != nil {
		return err
	}
	if err := validateSegment("type", e.Type); err != nil {
		return err
	}
	if err := validateNode("target", e.Target); err != nil {
		return err
	}
	return validateVersion("version", e.Version)
}
