package graph

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/haivivi/edgestore/pkg/encoding"
	"github.com/haivivi/edgestore/pkg/kv"
)

// DefaultPageSize is the number of columns fetched per store round-trip when
// Options.PageSize is zero.
const DefaultPageSize = 100

// Options configures an EdgeSerialization.
type Options struct {
	// PageSize is the number of columns fetched per round-trip.
	// Zero means DefaultPageSize.
	PageSize int

	// Prefetch fetches the first page when a query is opened, so that store
	// errors surface from the query call itself.
	Prefetch bool

	// Logger receives page-fetch debug logs. Nil means slog.Default().
	Logger *slog.Logger
}

// EdgeSerialization reads and writes edges in the five row families of a
// kv.Store. It holds no mutable state and is safe for concurrent use; the
// iterators it returns are not.
type EdgeSerialization struct {
	store    kv.Store
	pageSize int
	prefetch bool
	logger   *slog.Logger
}

// NewEdgeSerialization returns an EdgeSerialization reading from store.
// opts may be nil.
func NewEdgeSerialization(store kv.Store, opts *Options) (*EdgeSerialization, error) {
	s := &EdgeSerialization{store: store, pageSize: DefaultPageSize, logger: slog.Default()}
	if opts != nil {
		if opts.PageSize < 0 {
			return nil, &ValidationError{Field: "page size", Reason: fmt.Sprintf("%d is negative", opts.PageSize)}
		}
		if opts.PageSize > 0 {
			s.pageSize = opts.PageSize
		}
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
		s.prefetch = opts.Prefetch
	}
	return s, nil
}

// WriteEdge returns the uncommitted batch that stores e. See BuildWrite.
func (s *EdgeSerialization) WriteEdge(scope Scope, e Edge) (*kv.Batch, error) {
	return BuildWrite(scope, e)
}

// DeleteEdge returns the uncommitted batch that deletes e. See BuildDelete.
func (s *EdgeSerialization) DeleteEdge(scope Scope, e Edge) (*kv.Batch, error) {
	return BuildDelete(scope, e)
}

// --- exact edge ---

// GetEdgeFromSource returns the versions of one edge, newest first,
// looked up from its source.
func (s *EdgeSerialization) GetEdgeFromSource(ctx context.Context, scope Scope, search SearchByEdge) (*EdgeIterator, error) {
	return s.edgeVersions(ctx, "GetEdgeFromSource", scope, search)
}

// GetEdgeToTarget returns the versions of one edge, newest first, looked up
// from its target. It reads the same row as GetEdgeFromSource.
func (s *EdgeSerialization) GetEdgeToTarget(ctx context.Context, scope Scope, search SearchByEdge) (*EdgeIterator, error) {
	return s.edgeVersions(ctx, "GetEdgeToTarget", scope, search)
}

func (s *EdgeSerialization) edgeVersions(ctx context.Context, op string, scope Scope, search SearchByEdge) (*EdgeIterator, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	edge := Edge{Source: search.Source, Type: search.Type, Target: search.Target}
	if err := validateEdge(edge); err != nil {
		return nil, err
	}
	if err := validateCeiling(search.MaxVersion); err != nil {
		return nil, err
	}

	var start []byte
	if v, ok := search.MaxVersion.Max(); ok {
		col, err := versionColumn(v)
		if err != nil {
			return nil, err
		}
		start = col
	}
	if last := search.Last; last != nil {
		if err := validateEdge(*last); err != nil {
			return nil, err
		}
		if !last.SameEdge(edge) {
			return nil, &ValidationError{Field: "last", Reason: fmt.Sprintf("%v is not a version of the searched edge", *last)}
		}
		col, err := versionColumn(last.Version)
		if err != nil {
			return nil, err
		}
		if after := encoding.Successor(col); bytes.Compare(after, start) > 0 {
			start = after
		}
	}

	row := versionRow(scope, search.Source, search.Type, search.Target)
	return s.open(ctx, op, &EdgeIterator{
		family:     FamilyVersions,
		row:        row,
		maxVersion: search.MaxVersion,
	}, start)
}

// --- edges by type ---

// GetEdgesFromSource returns the edges of search.Type leaving search.Node,
// ordered by target and then by version, newest first.
func (s *EdgeSerialization) GetEdgesFromSource(ctx context.Context, scope Scope, search SearchByEdgeType) (*EdgeIterator, error) {
	return s.edgesByType(ctx, "GetEdgesFromSource", scope, FamilyBySource, search, "")
}

// GetEdgesToTarget returns the edges of search.Type entering search.Node,
// ordered by source and then by version, newest first.
func (s *EdgeSerialization) GetEdgesToTarget(ctx context.Context, scope Scope, search SearchByEdgeType) (*EdgeIterator, error) {
	return s.edgesByType(ctx, "GetEdgesToTarget", scope, FamilyByTarget, search, "")
}

// GetEdgesFromSourceByTargetType is GetEdgesFromSource restricted to
// targets of type search.NodeType.
func (s *EdgeSerialization) GetEdgesFromSourceByTargetType(ctx context.Context, scope Scope, search SearchByIDType) (*EdgeIterator, error) {
	if err := validateSegment("node type", search.NodeType); err != nil {
		return nil, err
	}
	return s.edgesByType(ctx, "GetEdgesFromSourceByTargetType", scope, FamilyBySourceTargetType, search.SearchByEdgeType, search.NodeType)
}

// GetEdgesToTargetBySourceType is GetEdgesToTarget restricted to sources
// of type search.NodeType.
func (s *EdgeSerialization) GetEdgesToTargetBySourceType(ctx context.Context, scope Scope, search SearchByIDType) (*EdgeIterator, error) {
	if err := validateSegment("node type", search.NodeType); err != nil {
		return nil, err
	}
	return s.edgesByType(ctx, "GetEdgesToTargetBySourceType", scope, FamilyByTargetSourceType, search.SearchByEdgeType, search.NodeType)
}

// edgesByType opens a scan of one anchor row. nodeType is empty for the
// untyped families.
func (s *EdgeSerialization) edgesByType(ctx context.Context, op string, scope Scope, family Family, search SearchByEdgeType, nodeType string) (*EdgeIterator, error) {
	fromSource := family == FamilyBySource || family == FamilyBySourceTargetType
	anchorField := "target"
	if fromSource {
		anchorField = "source"
	}

	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if err := validateNode(anchorField, search.Node); err != nil {
		return nil, err
	}
	if err := validateSegment("type", search.Type); err != nil {
		return nil, err
	}
	if err := validateCeiling(search.MaxVersion); err != nil {
		return nil, err
	}

	var row []byte
	if nodeType == "" {
		row = anchorRow(scope, search.Node, search.Type)
	} else {
		row = anchorRow(scope, search.Node, search.Type, nodeType)
	}
	it := &EdgeIterator{
		family:     family,
		row:        row,
		maxVersion: search.MaxVersion,
	}
	_, it.onePerNode = search.MaxVersion.Max()

	var start []byte
	if last := search.Last; last != nil {
		if err := validateEdge(*last); err != nil {
			return nil, err
		}
		anchor := last.Target
		if fromSource {
			anchor = last.Source
		}
		opp := opposite(family, *last)
		switch {
		case anchor != search.Node || last.Type != search.Type:
			return nil, &ValidationError{Field: "last", Reason: fmt.Sprintf("%v is not in the searched row", *last)}
		case nodeType != "" && opp.Type != nodeType:
			return nil, &ValidationError{Field: "last", Reason: fmt.Sprintf("%v does not match node type %q", *last, nodeType)}
		}
		col, err := columnFor(family, *last)
		if err != nil {
			return nil, err
		}
		start = encoding.Successor(col)
		if it.onePerNode {
			it.lastNode, it.seenNode = opp, true
		}
	}

	return s.open(ctx, op, it, start)
}

// open attaches a cursor to it, prefetching the first page if configured.
func (s *EdgeSerialization) open(ctx context.Context, op string, it *EdgeIterator, start []byte) (*EdgeIterator, error) {
	s.logger.Debug("graph: open query",
		"op", op,
		"family", it.family,
		"max_version", it.maxVersion,
		"resume", start != nil,
	)
	it.cursor = newCursor(ctx, s.store, it.family, it.row, start, s.pageSize, s.logger)
	if s.prefetch {
		it.cursor.fetch()
		if it.cursor.State() == StateFailed {
			return nil, it.cursor.Err()
		}
	}
	return it, nil
}

func validateCeiling(c Ceiling) error {
	if v, ok := c.Max(); ok {
		return validateVersion("max version", v)
	}
	return nil
}
